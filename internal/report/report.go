// Package report composes stored aggregates into the dashboard metrics.
package report

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe-cli/internal/model"
	"github.com/sells-group/leadpipe-cli/internal/store"
)

// Service computes read-only summary metrics over the two stored tables.
type Service struct {
	store store.Store
}

// New returns a report Service backed by the given store.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Summary is the dashboard headline block.
type Summary struct {
	TotalLeads      int64   `json:"total_leads" yaml:"total_leads"`
	FreshLeads      int64   `json:"fresh_leads" yaml:"fresh_leads"`
	TotalCalls      int64   `json:"total_calls" yaml:"total_calls"`
	AnsweredCalls   int64   `json:"answered_calls" yaml:"answered_calls"`
	AvgResponseTime float64 `json:"avg_response_time" yaml:"avg_response_time"`
	AvgCallDuration float64 `json:"avg_call_duration" yaml:"avg_call_duration"`
	ConversionRate  float64 `json:"conversion_rate" yaml:"conversion_rate"` // percent
}

// Bucket is one bar of the response-time histogram; [Low, High) seconds.
type Bucket struct {
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Count int     `json:"count" yaml:"count"`
}

// Report is the full metric set consumed by the dashboard.
type Report struct {
	Summary            *Summary                 `json:"summary" yaml:"summary"`
	Funnel             *model.Funnel            `json:"funnel" yaml:"funnel"`
	Channels           []model.ChannelCount     `json:"channels" yaml:"channels"`
	Agents             []model.AgentStats       `json:"agents" yaml:"agents"`
	StatusBreakdown    []model.StatusCount      `json:"status_breakdown" yaml:"status_breakdown"`
	HourlyVolume       []model.HourCount        `json:"hourly_volume" yaml:"hourly_volume"`
	FreshLeadsByDate   []model.DateSourceCount  `json:"fresh_leads_by_date" yaml:"fresh_leads_by_date"`
	ConversionBySource []model.SourceConversion `json:"conversion_by_source" yaml:"conversion_by_source"`
	ResponseTimes      []Bucket                 `json:"response_times" yaml:"response_times"`
}

// Summary computes the headline metrics. Conversion rate is the share of
// unique chat leads whose number was called as a fresh lead, in percent.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	callStats, err := s.store.CallStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: call stats")
	}
	chatStats, err := s.store.ChatStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: chat stats")
	}

	sum := &Summary{
		TotalLeads:      chatStats.UniqueLeads,
		FreshLeads:      callStats.FreshLeadCallees,
		TotalCalls:      callStats.TotalCalls,
		AnsweredCalls:   callStats.AnsweredCalls,
		AvgResponseTime: chatStats.AvgResponseTime,
		AvgCallDuration: callStats.AvgDuration,
	}
	if sum.TotalLeads > 0 {
		sum.ConversionRate = float64(sum.FreshLeads) / float64(sum.TotalLeads) * 100
	}
	return sum, nil
}

// ResponseTimeHistogram bins stored chat response times into equal-width
// buckets. Zero stored chats yields an empty histogram.
func (s *Service) ResponseTimeHistogram(ctx context.Context, buckets int) ([]Bucket, error) {
	if buckets <= 0 {
		buckets = 10
	}

	times, err := s.store.ResponseTimes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: response times")
	}
	if len(times) == 0 {
		return nil, nil
	}

	maxVal := 0.0
	for _, v := range times {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return []Bucket{{Low: 0, High: 1, Count: len(times)}}, nil
	}

	width := maxVal / float64(buckets)
	out := make([]Bucket, buckets)
	for i := range out {
		out[i] = Bucket{Low: float64(i) * width, High: float64(i+1) * width}
	}
	for _, v := range times {
		i := int(math.Floor(v / width))
		if i >= buckets {
			i = buckets - 1 // max value lands in the last bucket
		}
		out[i].Count++
	}
	return out, nil
}

// Full assembles every dashboard metric in one pass.
func (s *Service) Full(ctx context.Context) (*Report, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	funnel, err := s.store.Funnel(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: funnel")
	}
	channels, err := s.store.ChannelCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: channels")
	}
	agents, err := s.store.AgentStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: agents")
	}
	statuses, err := s.store.CallStatusCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: call status counts")
	}
	hourly, err := s.store.HourlyCallVolume(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: hourly call volume")
	}
	byDate, err := s.store.FreshLeadsByDate(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: fresh leads by date")
	}
	conversion, err := s.store.ConversionBySource(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: conversion by source")
	}
	histogram, err := s.ResponseTimeHistogram(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &Report{
		Summary:            summary,
		Funnel:             funnel,
		Channels:           channels,
		Agents:             agents,
		StatusBreakdown:    statuses,
		HourlyVolume:       hourly,
		FreshLeadsByDate:   byDate,
		ConversionBySource: conversion,
		ResponseTimes:      histogram,
	}, nil
}
