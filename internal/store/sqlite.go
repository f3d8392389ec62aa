package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadpipe-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Timestamps are stored in SQLite's own datetime format so the date
// and time SQL functions can read them.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS call_records (
	call_id            TEXT PRIMARY KEY,
	timestamp          DATETIME,
	call_from          TEXT,
	call_to            TEXT,
	duration           REAL NOT NULL DEFAULT 0,
	ring_duration      REAL NOT NULL DEFAULT 0,
	talk_duration      REAL NOT NULL DEFAULT 0,
	status             TEXT,
	recording_file     TEXT,
	communication_type TEXT,
	call_date          TEXT,
	is_fresh_lead      BOOLEAN NOT NULL DEFAULT 0,
	source             TEXT
);

CREATE TABLE IF NOT EXISTS chat_records (
	chat_id               TEXT PRIMARY KEY,
	type                  TEXT,
	status                TEXT,
	channel               TEXT,
	client                TEXT,
	employee              TEXT,
	messages              INTEGER NOT NULL DEFAULT 0,
	conversation_duration INTEGER NOT NULL DEFAULT 0,
	initial_response_time INTEGER NOT NULL DEFAULT 0,
	average_response_time INTEGER NOT NULL DEFAULT 0,
	created_on            DATETIME,
	closed_on             DATETIME,
	response_time         REAL NOT NULL DEFAULT 0,
	lead_date             TEXT,
	phone_number          TEXT,
	crm_record            BOOLEAN NOT NULL DEFAULT 0,
	is_fresh_lead         BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ingest_batches (
	id             TEXT PRIMARY KEY,
	calls_file     TEXT,
	chats_file     TEXT,
	calls_inserted INTEGER NOT NULL DEFAULT 0,
	chats_inserted INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_call_records_call_date ON call_records(call_date);
CREATE INDEX IF NOT EXISTS idx_call_records_fresh ON call_records(is_fresh_lead);
CREATE INDEX IF NOT EXISTS idx_call_records_call_to ON call_records(call_to);
CREATE INDEX IF NOT EXISTS idx_chat_records_phone ON chat_records(phone_number);
CREATE INDEX IF NOT EXISTS idx_chat_records_channel ON chat_records(channel);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DROP TABLE IF EXISTS call_records;
		DROP TABLE IF EXISTS chat_records;
		DROP TABLE IF EXISTS ingest_batches;
	`)
	if err != nil {
		return eris.Wrap(err, "sqlite: reset")
	}
	return s.Migrate(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCalls(ctx context.Context, records []model.CallRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert calls")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO call_records (
			call_id, timestamp, call_from, call_to, duration, ring_duration,
			talk_duration, status, recording_file, communication_type,
			call_date, is_fresh_lead, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert calls")
	}
	defer stmt.Close()

	var inserted int64
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.CallID, timeArg(rec.Timestamp), rec.CallFrom, rec.CallTo,
			rec.Duration, rec.RingDuration, rec.TalkDuration, rec.Status,
			strArg(rec.RecordingFile), strArg(rec.CommunicationType),
			dateArg(rec.CallDate), rec.IsFreshLead, strArg(rec.Source),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert call %s", rec.CallID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert calls")
	}
	return inserted, nil
}

func (s *SQLiteStore) UpsertChats(ctx context.Context, records []model.ChatRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert chats")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO chat_records (
			chat_id, type, status, channel, client, employee, messages,
			conversation_duration, initial_response_time, average_response_time,
			created_on, closed_on, response_time, lead_date, phone_number,
			crm_record, is_fresh_lead
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert chats")
	}
	defer stmt.Close()

	var inserted int64
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.ChatID, rec.Type, rec.Status, rec.Channel, rec.Client,
			rec.Employee, rec.Messages, rec.ConversationDuration,
			rec.InitialResponseTime, rec.AverageResponseTime,
			timeArg(rec.CreatedOn), timeArg(rec.ClosedOn), rec.ResponseTime,
			dateArg(rec.LeadDate), rec.PhoneNumber, rec.CRMRecord,
			rec.IsFreshLead,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert chat %s", rec.ChatID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert chats")
	}
	return inserted, nil
}

func (s *SQLiteStore) RecordIngestBatch(ctx context.Context, batch model.IngestBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_batches (id, calls_file, chats_file, calls_inserted, chats_inserted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.CallsFile, batch.ChatsFile, batch.CallsInserted,
		batch.ChatsInserted, batch.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: record ingest batch")
}

func (s *SQLiteStore) CallStats(ctx context.Context) (*model.CallStats, error) {
	var stats model.CallStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ANSWERED' THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT CASE WHEN is_fresh_lead THEN call_to END),
		       COALESCE(AVG(duration), 0)
		FROM call_records`,
	).Scan(&stats.TotalCalls, &stats.AnsweredCalls, &stats.FreshLeadCallees, &stats.AvgDuration)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: call stats")
	}
	return &stats, nil
}

func (s *SQLiteStore) ChatStats(ctx context.Context) (*model.ChatStats, error) {
	var stats model.ChatStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT phone_number),
		       COALESCE(SUM(CASE WHEN crm_record THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(response_time), 0)
		FROM chat_records`,
	).Scan(&stats.TotalChats, &stats.UniqueLeads, &stats.CRMRecords, &stats.AvgResponseTime)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: chat stats")
	}
	return &stats, nil
}

func (s *SQLiteStore) ChannelCounts(ctx context.Context) ([]model.ChannelCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, COUNT(*) FROM chat_records
		GROUP BY channel ORDER BY COUNT(*) DESC, channel`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: channel counts")
	}
	defer rows.Close()

	var out []model.ChannelCount
	for rows.Next() {
		var c model.ChannelCount
		if err := rows.Scan(&c.Channel, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan channel count")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: channel counts iterate")
}

func (s *SQLiteStore) AgentStats(ctx context.Context) ([]model.AgentStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee, COUNT(*),
		       COALESCE(AVG(messages), 0),
		       COALESCE(AVG(response_time), 0),
		       COALESCE(AVG(conversation_duration), 0)
		FROM chat_records
		WHERE employee <> ''
		GROUP BY employee ORDER BY COUNT(*) DESC, employee`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: agent stats")
	}
	defer rows.Close()

	var out []model.AgentStats
	for rows.Next() {
		var a model.AgentStats
		if err := rows.Scan(&a.Employee, &a.Chats, &a.AvgMessages, &a.AvgResponseTime, &a.AvgDuration); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agent stats")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: agent stats iterate")
}

func (s *SQLiteStore) CallStatusCounts(ctx context.Context) ([]model.StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(status, ''), COUNT(*) FROM call_records
		GROUP BY status ORDER BY COUNT(*) DESC, status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: call status counts")
	}
	defer rows.Close()

	var out []model.StatusCount
	for rows.Next() {
		var sc model.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan call status count")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: call status counts iterate")
}

func (s *SQLiteStore) HourlyCallVolume(ctx context.Context) ([]model.HourCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%H', timestamp) AS INTEGER), COUNT(*)
		FROM call_records WHERE timestamp IS NOT NULL
		GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: hourly call volume")
	}
	defer rows.Close()

	var out []model.HourCount
	for rows.Next() {
		var h model.HourCount
		if err := rows.Scan(&h.Hour, &h.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hourly call volume")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: hourly call volume iterate")
}

func (s *SQLiteStore) FreshLeadsByDate(ctx context.Context) ([]model.DateSourceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(call_date, ''), COALESCE(source, ''), COUNT(*)
		FROM call_records WHERE is_fresh_lead
		GROUP BY call_date, source ORDER BY call_date, source`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fresh leads by date")
	}
	defer rows.Close()

	var out []model.DateSourceCount
	for rows.Next() {
		var d model.DateSourceCount
		if err := rows.Scan(&d.Date, &d.Source, &d.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fresh leads by date")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: fresh leads by date iterate")
}

func (s *SQLiteStore) ConversionBySource(ctx context.Context) ([]model.SourceConversion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.channel,
		       COUNT(DISTINCT c.phone_number),
		       COUNT(DISTINCT k.call_to)
		FROM chat_records c
		LEFT JOIN call_records k
		  ON k.call_to = c.phone_number AND k.status = 'ANSWERED'
		GROUP BY c.channel ORDER BY c.channel`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: conversion by source")
	}
	defer rows.Close()

	var out []model.SourceConversion
	for rows.Next() {
		var sc model.SourceConversion
		if err := rows.Scan(&sc.Source, &sc.Leads, &sc.Converted); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conversion by source")
		}
		if sc.Leads > 0 {
			sc.ConversionRate = float64(sc.Converted) / float64(sc.Leads) * 100
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: conversion by source iterate")
}

func (s *SQLiteStore) Funnel(ctx context.Context) (*model.Funnel, error) {
	var f model.Funnel
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(DISTINCT phone_number) FROM chat_records),
		       (SELECT COUNT(DISTINCT call_to) FROM call_records),
		       (SELECT COUNT(DISTINCT call_to) FROM call_records WHERE status = 'ANSWERED')`,
	).Scan(&f.TotalLeads, &f.ContactedLeads, &f.AnsweredCalls)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: funnel")
	}
	return &f, nil
}

func (s *SQLiteStore) ResponseTimes(ctx context.Context) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT response_time FROM chat_records`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: response times")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response time")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: response times iterate")
}

func (s *SQLiteStore) ListFreshLeads(ctx context.Context, limit int) ([]model.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, timestamp, call_from, call_to, duration, ring_duration,
		       talk_duration, status, recording_file, communication_type,
		       call_date, is_fresh_lead, source
		FROM call_records WHERE is_fresh_lead
		ORDER BY call_date, call_id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fresh leads")
	}
	defer rows.Close()

	var out []model.CallRecord
	for rows.Next() {
		var rec model.CallRecord
		var callDate sql.NullString
		err := rows.Scan(&rec.CallID, &rec.Timestamp, &rec.CallFrom, &rec.CallTo,
			&rec.Duration, &rec.RingDuration, &rec.TalkDuration, &rec.Status,
			&rec.RecordingFile, &rec.CommunicationType, &callDate,
			&rec.IsFreshLead, &rec.Source)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fresh lead")
		}
		rec.CallDate = parseDate(callDate)
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list fresh leads iterate")
}

// arg helpers: dates are stored as YYYY-MM-DD text so grouping and equality
// behave the same under both backends' collations.

func timeArg(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time.UTC()
}

func dateArg(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time.Format("2006-01-02")
}

func strArg(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func parseDate(s sql.NullString) sql.NullTime {
	if !s.Valid || s.String == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse("2006-01-02", s.String)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
