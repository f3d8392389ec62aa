package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe-cli/internal/db"
	"github.com/sells-group/leadpipe-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS call_records (
	call_id            TEXT PRIMARY KEY,
	timestamp          TIMESTAMPTZ,
	call_from          TEXT,
	call_to            TEXT,
	duration           DOUBLE PRECISION NOT NULL DEFAULT 0,
	ring_duration      DOUBLE PRECISION NOT NULL DEFAULT 0,
	talk_duration      DOUBLE PRECISION NOT NULL DEFAULT 0,
	status             TEXT,
	recording_file     TEXT,
	communication_type TEXT,
	call_date          DATE,
	is_fresh_lead      BOOLEAN NOT NULL DEFAULT FALSE,
	source             TEXT
);

CREATE TABLE IF NOT EXISTS chat_records (
	chat_id               TEXT PRIMARY KEY,
	type                  TEXT,
	status                TEXT,
	channel               TEXT,
	client                TEXT,
	employee              TEXT,
	messages              BIGINT NOT NULL DEFAULT 0,
	conversation_duration BIGINT NOT NULL DEFAULT 0,
	initial_response_time BIGINT NOT NULL DEFAULT 0,
	average_response_time BIGINT NOT NULL DEFAULT 0,
	created_on            TIMESTAMPTZ,
	closed_on             TIMESTAMPTZ,
	response_time         DOUBLE PRECISION NOT NULL DEFAULT 0,
	lead_date             DATE,
	phone_number          TEXT,
	crm_record            BOOLEAN NOT NULL DEFAULT FALSE,
	is_fresh_lead         BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS ingest_batches (
	id             TEXT PRIMARY KEY,
	calls_file     TEXT,
	chats_file     TEXT,
	calls_inserted BIGINT NOT NULL DEFAULT 0,
	chats_inserted BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_call_records_call_date ON call_records(call_date);
CREATE INDEX IF NOT EXISTS idx_call_records_fresh ON call_records(is_fresh_lead);
CREATE INDEX IF NOT EXISTS idx_call_records_call_to ON call_records(call_to);
CREATE INDEX IF NOT EXISTS idx_chat_records_phone ON chat_records(phone_number);
CREATE INDEX IF NOT EXISTS idx_chat_records_channel ON chat_records(channel);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS call_records;
		DROP TABLE IF EXISTS chat_records;
		DROP TABLE IF EXISTS ingest_batches;
	`)
	if err != nil {
		return eris.Wrap(err, "postgres: reset")
	}
	return s.Migrate(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const insertCallSQL = `
	INSERT INTO call_records (
		call_id, timestamp, call_from, call_to, duration, ring_duration,
		talk_duration, status, recording_file, communication_type,
		call_date, is_fresh_lead, source
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (call_id) DO NOTHING`

func (s *PostgresStore) UpsertCalls(ctx context.Context, records []model.CallRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert calls")
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, rec := range records {
		tag, err := tx.Exec(ctx, insertCallSQL,
			rec.CallID, timeArg(rec.Timestamp), rec.CallFrom, rec.CallTo,
			rec.Duration, rec.RingDuration, rec.TalkDuration, rec.Status,
			strArg(rec.RecordingFile), strArg(rec.CommunicationType),
			dateArg(rec.CallDate), rec.IsFreshLead, strArg(rec.Source),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert call %s", rec.CallID)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert calls")
	}
	return inserted, nil
}

const insertChatSQL = `
	INSERT INTO chat_records (
		chat_id, type, status, channel, client, employee, messages,
		conversation_duration, initial_response_time, average_response_time,
		created_on, closed_on, response_time, lead_date, phone_number,
		crm_record, is_fresh_lead
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (chat_id) DO NOTHING`

func (s *PostgresStore) UpsertChats(ctx context.Context, records []model.ChatRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert chats")
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, rec := range records {
		tag, err := tx.Exec(ctx, insertChatSQL,
			rec.ChatID, rec.Type, rec.Status, rec.Channel, rec.Client,
			rec.Employee, rec.Messages, rec.ConversationDuration,
			rec.InitialResponseTime, rec.AverageResponseTime,
			timeArg(rec.CreatedOn), timeArg(rec.ClosedOn), rec.ResponseTime,
			dateArg(rec.LeadDate), rec.PhoneNumber, rec.CRMRecord,
			rec.IsFreshLead,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert chat %s", rec.ChatID)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert chats")
	}
	return inserted, nil
}

func (s *PostgresStore) RecordIngestBatch(ctx context.Context, batch model.IngestBatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_batches (id, calls_file, chats_file, calls_inserted, chats_inserted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.ID, batch.CallsFile, batch.ChatsFile, batch.CallsInserted,
		batch.ChatsInserted, batch.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: record ingest batch")
}

func (s *PostgresStore) CallStats(ctx context.Context) (*model.CallStats, error) {
	var stats model.CallStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ANSWERED' THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT call_to) FILTER (WHERE is_fresh_lead),
		       COALESCE(AVG(duration), 0)
		FROM call_records`,
	).Scan(&stats.TotalCalls, &stats.AnsweredCalls, &stats.FreshLeadCallees, &stats.AvgDuration)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: call stats")
	}
	return &stats, nil
}

func (s *PostgresStore) ChatStats(ctx context.Context) (*model.ChatStats, error) {
	var stats model.ChatStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT phone_number),
		       COALESCE(SUM(CASE WHEN crm_record THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(response_time), 0)
		FROM chat_records`,
	).Scan(&stats.TotalChats, &stats.UniqueLeads, &stats.CRMRecords, &stats.AvgResponseTime)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: chat stats")
	}
	return &stats, nil
}

func (s *PostgresStore) ChannelCounts(ctx context.Context) ([]model.ChannelCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT channel, COUNT(*) FROM chat_records
		GROUP BY channel ORDER BY COUNT(*) DESC, channel`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: channel counts")
	}
	defer rows.Close()

	var out []model.ChannelCount
	for rows.Next() {
		var c model.ChannelCount
		if err := rows.Scan(&c.Channel, &c.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan channel count")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: channel counts iterate")
}

func (s *PostgresStore) AgentStats(ctx context.Context) ([]model.AgentStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT employee, COUNT(*),
		       COALESCE(AVG(messages), 0),
		       COALESCE(AVG(response_time), 0),
		       COALESCE(AVG(conversation_duration), 0)
		FROM chat_records
		WHERE employee <> ''
		GROUP BY employee ORDER BY COUNT(*) DESC, employee`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: agent stats")
	}
	defer rows.Close()

	var out []model.AgentStats
	for rows.Next() {
		var a model.AgentStats
		if err := rows.Scan(&a.Employee, &a.Chats, &a.AvgMessages, &a.AvgResponseTime, &a.AvgDuration); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agent stats")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: agent stats iterate")
}

func (s *PostgresStore) CallStatusCounts(ctx context.Context) ([]model.StatusCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(status, ''), COUNT(*) FROM call_records
		GROUP BY status ORDER BY COUNT(*) DESC, status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: call status counts")
	}
	defer rows.Close()

	var out []model.StatusCount
	for rows.Next() {
		var sc model.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan call status count")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: call status counts iterate")
}

func (s *PostgresStore) HourlyCallVolume(ctx context.Context) ([]model.HourCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM timestamp)::int, COUNT(*)
		FROM call_records WHERE timestamp IS NOT NULL
		GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: hourly call volume")
	}
	defer rows.Close()

	var out []model.HourCount
	for rows.Next() {
		var h model.HourCount
		if err := rows.Scan(&h.Hour, &h.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hourly call volume")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: hourly call volume iterate")
}

func (s *PostgresStore) FreshLeadsByDate(ctx context.Context) ([]model.DateSourceCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(to_char(call_date, 'YYYY-MM-DD'), ''), COALESCE(source, ''), COUNT(*)
		FROM call_records WHERE is_fresh_lead
		GROUP BY call_date, source ORDER BY call_date, source`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fresh leads by date")
	}
	defer rows.Close()

	var out []model.DateSourceCount
	for rows.Next() {
		var d model.DateSourceCount
		if err := rows.Scan(&d.Date, &d.Source, &d.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fresh leads by date")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: fresh leads by date iterate")
}

func (s *PostgresStore) ConversionBySource(ctx context.Context) ([]model.SourceConversion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.channel,
		       COUNT(DISTINCT c.phone_number),
		       COUNT(DISTINCT k.call_to)
		FROM chat_records c
		LEFT JOIN call_records k
		  ON k.call_to = c.phone_number AND k.status = 'ANSWERED'
		GROUP BY c.channel ORDER BY c.channel`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: conversion by source")
	}
	defer rows.Close()

	var out []model.SourceConversion
	for rows.Next() {
		var sc model.SourceConversion
		if err := rows.Scan(&sc.Source, &sc.Leads, &sc.Converted); err != nil {
			return nil, eris.Wrap(err, "postgres: scan conversion by source")
		}
		if sc.Leads > 0 {
			sc.ConversionRate = float64(sc.Converted) / float64(sc.Leads) * 100
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: conversion by source iterate")
}

func (s *PostgresStore) Funnel(ctx context.Context) (*model.Funnel, error) {
	var f model.Funnel
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(DISTINCT phone_number) FROM chat_records),
		       (SELECT COUNT(DISTINCT call_to) FROM call_records),
		       (SELECT COUNT(DISTINCT call_to) FROM call_records WHERE status = 'ANSWERED')`,
	).Scan(&f.TotalLeads, &f.ContactedLeads, &f.AnsweredCalls)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: funnel")
	}
	return &f, nil
}

func (s *PostgresStore) ResponseTimes(ctx context.Context) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT response_time FROM chat_records`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: response times")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response time")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: response times iterate")
}

func (s *PostgresStore) ListFreshLeads(ctx context.Context, limit int) ([]model.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT call_id, timestamp, call_from, call_to, duration, ring_duration,
		       talk_duration, status, recording_file, communication_type,
		       call_date, is_fresh_lead, source
		FROM call_records WHERE is_fresh_lead
		ORDER BY call_date, call_id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fresh leads")
	}
	defer rows.Close()

	var out []model.CallRecord
	for rows.Next() {
		var rec model.CallRecord
		err := rows.Scan(&rec.CallID, &rec.Timestamp, &rec.CallFrom, &rec.CallTo,
			&rec.Duration, &rec.RingDuration, &rec.TalkDuration, &rec.Status,
			&rec.RecordingFile, &rec.CommunicationType, &rec.CallDate,
			&rec.IsFreshLead, &rec.Source)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan fresh lead")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fresh leads iterate")
}
