// Package model defines the normalized record types and aggregate results
// shared across the pipeline, store, and report layers.
package model

import (
	"database/sql"
	"time"
)

// CallRecord is one normalized telephony call. CallDate is always derived
// from Timestamp, never supplied directly. Phone fields hold canonical keys.
type CallRecord struct {
	CallID            string         `json:"call_id"`
	Timestamp         sql.NullTime   `json:"timestamp"`
	CallFrom          string         `json:"call_from"`
	CallTo            string         `json:"call_to"`
	Duration          float64        `json:"duration"`
	RingDuration      float64        `json:"ring_duration"`
	TalkDuration      float64        `json:"talk_duration"`
	Status            string         `json:"status"`
	RecordingFile     sql.NullString `json:"recording_file"`
	CommunicationType sql.NullString `json:"communication_type"`
	CallDate          sql.NullTime   `json:"call_date"`
	IsFreshLead       bool           `json:"is_fresh_lead"`
	Source            sql.NullString `json:"source"`
}

// ChatRecord is one normalized chat/support conversation. LeadDate is always
// derived from CreatedOn; PhoneNumber is the canonical key derived from the
// client field.
type ChatRecord struct {
	ChatID               string       `json:"chat_id"`
	Type                 string       `json:"type"`
	Status               string       `json:"status"`
	Channel              string       `json:"channel"`
	Client               string       `json:"client"`
	Employee             string       `json:"employee"`
	Messages             int64        `json:"messages"`
	ConversationDuration int64        `json:"conversation_duration"`
	InitialResponseTime  int64        `json:"initial_response_time"`
	AverageResponseTime  int64        `json:"average_response_time"`
	CreatedOn            sql.NullTime `json:"created_on"`
	ClosedOn             sql.NullTime `json:"closed_on"`
	ResponseTime         float64      `json:"response_time"`
	LeadDate             sql.NullTime `json:"lead_date"`
	PhoneNumber          string       `json:"phone_number"`
	CRMRecord            bool         `json:"crm_record"`
	IsFreshLead          bool         `json:"is_fresh_lead"`
}

// IngestBatch records one completed ingestion cycle.
type IngestBatch struct {
	ID            string    `json:"id"`
	CallsFile     string    `json:"calls_file"`
	ChatsFile     string    `json:"chats_file"`
	CallsInserted int       `json:"calls_inserted"`
	ChatsInserted int       `json:"chats_inserted"`
	CreatedAt     time.Time `json:"created_at"`
}

// CallStats summarizes the stored call table.
type CallStats struct {
	TotalCalls       int64   `json:"total_calls"`
	AnsweredCalls    int64   `json:"answered_calls"`
	FreshLeadCallees int64   `json:"fresh_lead_callees"` // distinct call_to flagged fresh
	AvgDuration      float64 `json:"avg_duration"`
}

// ChatStats summarizes the stored chat table.
type ChatStats struct {
	TotalChats      int64   `json:"total_chats"`
	UniqueLeads     int64   `json:"unique_leads"` // distinct phone_number
	CRMRecords      int64   `json:"crm_records"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// ChannelCount is one bar of the per-channel distribution.
type ChannelCount struct {
	Channel string `json:"channel"`
	Count   int64  `json:"count"`
}

// AgentStats is one agent's performance row.
type AgentStats struct {
	Employee        string  `json:"employee"`
	Chats           int64   `json:"chats"`
	AvgMessages     float64 `json:"avg_messages"`
	AvgResponseTime float64 `json:"avg_response_time"`
	AvgDuration     float64 `json:"avg_duration"`
}

// StatusCount is one slice of the call status distribution.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// HourCount is the call volume for one hour of the day (0-23).
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// DateSourceCount is one (date, source) bucket of fresh leads.
type DateSourceCount struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// SourceConversion is the conversion rate attributed to one chat channel.
type SourceConversion struct {
	Source         string  `json:"source"`
	Leads          int64   `json:"leads"`
	Converted      int64   `json:"converted"`
	ConversionRate float64 `json:"conversion_rate"` // percent
}

// Funnel is the 3-stage lead funnel.
type Funnel struct {
	TotalLeads     int64 `json:"total_leads"`     // distinct chat phone numbers
	ContactedLeads int64 `json:"contacted_leads"` // distinct callees
	AnsweredCalls  int64 `json:"answered_calls"`  // distinct callees with ANSWERED
}
