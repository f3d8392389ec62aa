// Package store persists normalized call and chat records behind an
// insert-or-ignore upsert contract and serves the read-side aggregates.
package store

import (
	"context"

	"github.com/sells-group/leadpipe-cli/internal/model"
)

// Store defines the persistence interface for the lead pipeline. Upserts
// insert each record only if its unique id is absent; existing rows are
// never modified. A batch is one transaction: any failure other than a
// duplicate key rolls the whole batch back.
type Store interface {
	// Writes
	UpsertCalls(ctx context.Context, records []model.CallRecord) (int64, error)
	UpsertChats(ctx context.Context, records []model.ChatRecord) (int64, error)
	RecordIngestBatch(ctx context.Context, batch model.IngestBatch) error

	// Aggregates
	CallStats(ctx context.Context) (*model.CallStats, error)
	ChatStats(ctx context.Context) (*model.ChatStats, error)
	ChannelCounts(ctx context.Context) ([]model.ChannelCount, error)
	AgentStats(ctx context.Context) ([]model.AgentStats, error)
	CallStatusCounts(ctx context.Context) ([]model.StatusCount, error)
	HourlyCallVolume(ctx context.Context) ([]model.HourCount, error)
	FreshLeadsByDate(ctx context.Context) ([]model.DateSourceCount, error)
	ConversionBySource(ctx context.Context) ([]model.SourceConversion, error)
	Funnel(ctx context.Context) (*model.Funnel, error)
	ResponseTimes(ctx context.Context) ([]float64, error)
	ListFreshLeads(ctx context.Context, limit int) ([]model.CallRecord, error)

	// Lifecycle. Migrate is strictly additive (create-if-missing); Reset is
	// the only destructive operation and must be invoked explicitly.
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}
