package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func nt(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func ns(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func testCall(id, to, status string, fresh bool, source string) model.CallRecord {
	ts := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	rec := model.CallRecord{
		CallID:       id,
		Timestamp:    nt(ts),
		CallFrom:     "20223456789",
		CallTo:       to,
		Duration:     42,
		RingDuration: 5,
		TalkDuration: 30,
		Status:       status,
		CallDate:     nt(day(2024, 3, 1)),
		IsFreshLead:  fresh,
	}
	if source != "" {
		rec.Source = ns(source)
	}
	return rec
}

func testChat(id, channel, phone, employee string) model.ChatRecord {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.ChatRecord{
		ChatID:       id,
		Type:         "chat",
		Status:       "closed",
		Channel:      channel,
		Client:       phone,
		Employee:     employee,
		Messages:     4,
		CreatedOn:    nt(created),
		ResponseTime: 20,
		LeadDate:     nt(day(2024, 3, 1)),
		PhoneNumber:  phone,
	}
}

func TestSQLite_UpsertIdempotence(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	calls := []model.CallRecord{
		testCall("c1", "201011112222", "ANSWERED", true, "Facebook"),
		testCall("c2", "201033334444", "NO ANSWER", false, ""),
	}
	chats := []model.ChatRecord{
		testChat("h1", "Facebook", "201011112222", "agent.a"),
	}

	n, err := s.UpsertCalls(ctx, calls)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpsertChats(ctx, chats)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// re-ingesting the same batch inserts nothing and overwrites nothing
	n, err = s.UpsertCalls(ctx, calls)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.UpsertChats(ctx, chats)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	stats, err := s.CallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCalls)
}

func TestSQLite_DuplicateDoesNotOverwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	original := testCall("c1", "201011112222", "ANSWERED", true, "Facebook")
	_, err := s.UpsertCalls(ctx, []model.CallRecord{original})
	require.NoError(t, err)

	mutated := original
	mutated.Status = "NO ANSWER"
	mutated.IsFreshLead = false
	_, err = s.UpsertCalls(ctx, []model.CallRecord{mutated})
	require.NoError(t, err)

	leads, err := s.ListFreshLeads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1, "original fresh-lead row is untouched")
	assert.Equal(t, "ANSWERED", leads[0].Status)
	assert.Equal(t, "Facebook", leads[0].Source.String)
}

func TestSQLite_CallAndChatStats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertCalls(ctx, []model.CallRecord{
		testCall("c1", "201011112222", "ANSWERED", true, "Facebook"),
		testCall("c2", "201033334444", "NO ANSWER", false, ""),
		testCall("c3", "201011112222", "ANSWERED", true, "Facebook"),
	})
	require.NoError(t, err)

	chats := []model.ChatRecord{
		testChat("h1", "Facebook", "201011112222", "agent.a"),
		testChat("h2", "Website", "201033334444", "agent.b"),
		testChat("h3", "Website", "201033334444", "agent.b"),
	}
	chats[0].CRMRecord = true
	chats[0].ResponseTime = 10
	chats[1].ResponseTime = 20
	chats[2].ResponseTime = 30
	_, err = s.UpsertChats(ctx, chats)
	require.NoError(t, err)

	cs, err := s.CallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cs.TotalCalls)
	assert.Equal(t, int64(2), cs.AnsweredCalls)
	assert.Equal(t, int64(1), cs.FreshLeadCallees, "same callee counted once")
	assert.InDelta(t, 42.0, cs.AvgDuration, 0.001)

	hs, err := s.ChatStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), hs.TotalChats)
	assert.Equal(t, int64(2), hs.UniqueLeads)
	assert.Equal(t, int64(1), hs.CRMRecords)
	assert.InDelta(t, 20.0, hs.AvgResponseTime, 0.001)
}

func TestSQLite_ChannelAndAgentAggregates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	chats := []model.ChatRecord{
		testChat("h1", "Facebook", "201011112222", "agent.a"),
		testChat("h2", "Facebook", "201033334444", "agent.a"),
		testChat("h3", "Website", "201055556666", "agent.b"),
		testChat("h4", "Website", "201055556666", ""),
	}
	_, err := s.UpsertChats(ctx, chats)
	require.NoError(t, err)

	channels, err := s.ChannelCounts(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, model.ChannelCount{Channel: "Facebook", Count: 2}, channels[0])
	assert.Equal(t, model.ChannelCount{Channel: "Website", Count: 2}, channels[1])

	agents, err := s.AgentStats(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2, "blank employee rows excluded")
	assert.Equal(t, "agent.a", agents[0].Employee)
	assert.Equal(t, int64(2), agents[0].Chats)
	assert.InDelta(t, 4.0, agents[0].AvgMessages, 0.001)
}

func TestSQLite_CallStatusCounts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertCalls(ctx, []model.CallRecord{
		testCall("c1", "201011112222", "ANSWERED", false, ""),
		testCall("c2", "201033334444", "ANSWERED", false, ""),
		testCall("c3", "201055556666", "NO ANSWER", false, ""),
	})
	require.NoError(t, err)

	statuses, err := s.CallStatusCounts(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, model.StatusCount{Status: "ANSWERED", Count: 2}, statuses[0])
	assert.Equal(t, model.StatusCount{Status: "NO ANSWER", Count: 1}, statuses[1])
}

func TestSQLite_HourlyCallVolume(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	c1 := testCall("c1", "201011112222", "ANSWERED", false, "")
	c2 := testCall("c2", "201033334444", "ANSWERED", false, "")
	c3 := testCall("c3", "201055556666", "BUSY", false, "")
	c4 := testCall("c4", "201077778888", "BUSY", false, "")
	c2.Timestamp = nt(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	c3.Timestamp = nt(time.Date(2024, 3, 2, 9, 5, 0, 0, time.UTC))
	c4.Timestamp = sql.NullTime{} // no timestamp, excluded
	_, err := s.UpsertCalls(ctx, []model.CallRecord{c1, c2, c3, c4})
	require.NoError(t, err)

	hourly, err := s.HourlyCallVolume(ctx)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	assert.Equal(t, model.HourCount{Hour: 9, Count: 2}, hourly[0], "same hour across days pools")
	assert.Equal(t, model.HourCount{Hour: 14, Count: 1}, hourly[1])
}

func TestSQLite_FreshLeadsByDate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	c1 := testCall("c1", "201011112222", "ANSWERED", true, "Facebook")
	c2 := testCall("c2", "201033334444", "ANSWERED", true, "Facebook")
	c3 := testCall("c3", "201055556666", "ANSWERED", true, "Instagram")
	c4 := testCall("c4", "201077778888", "BUSY", false, "")
	c3.CallDate = nt(day(2024, 3, 2))
	_, err := s.UpsertCalls(ctx, []model.CallRecord{c1, c2, c3, c4})
	require.NoError(t, err)

	buckets, err := s.FreshLeadsByDate(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, model.DateSourceCount{Date: "2024-03-01", Source: "Facebook", Count: 2}, buckets[0])
	assert.Equal(t, model.DateSourceCount{Date: "2024-03-02", Source: "Instagram", Count: 1}, buckets[1])
}

func TestSQLite_FunnelAndConversion(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertChats(ctx, []model.ChatRecord{
		testChat("h1", "Facebook", "201011112222", "agent.a"),
		testChat("h2", "Facebook", "201033334444", "agent.a"),
		testChat("h3", "Website", "201055556666", "agent.b"),
	})
	require.NoError(t, err)

	_, err = s.UpsertCalls(ctx, []model.CallRecord{
		testCall("c1", "201011112222", "ANSWERED", true, "Facebook"),
		testCall("c2", "201033334444", "NO ANSWER", false, ""),
	})
	require.NoError(t, err)

	f, err := s.Funnel(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.TotalLeads)
	assert.Equal(t, int64(2), f.ContactedLeads)
	assert.Equal(t, int64(1), f.AnsweredCalls)

	conv, err := s.ConversionBySource(ctx)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	fb := conv[0]
	assert.Equal(t, "Facebook", fb.Source)
	assert.Equal(t, int64(2), fb.Leads)
	assert.Equal(t, int64(1), fb.Converted)
	assert.InDelta(t, 50.0, fb.ConversionRate, 0.001)
	web := conv[1]
	assert.Equal(t, "Website", web.Source)
	assert.Equal(t, int64(0), web.Converted)
	assert.InDelta(t, 0.0, web.ConversionRate, 0.001)
}

func TestSQLite_ResponseTimes(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	chats := []model.ChatRecord{
		testChat("h1", "Facebook", "201011112222", "agent.a"),
		testChat("h2", "Facebook", "201033334444", "agent.a"),
	}
	chats[0].ResponseTime = 12.5
	chats[1].ResponseTime = 40
	_, err := s.UpsertChats(ctx, chats)
	require.NoError(t, err)

	times, err := s.ResponseTimes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{12.5, 40}, times)
}

func TestSQLite_RecordIngestBatch(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	err := s.RecordIngestBatch(ctx, model.IngestBatch{
		ID:            "batch-1",
		CallsFile:     "calls.csv",
		ChatsFile:     "chats.csv",
		CallsInserted: 10,
		ChatsInserted: 5,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	// same id again is a genuine write failure, not an ignored conflict
	err = s.RecordIngestBatch(ctx, model.IngestBatch{ID: "batch-1", CreatedAt: time.Now()})
	assert.Error(t, err)
}

func TestSQLite_ResetThenMigrateIsAdditive(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertCalls(ctx, []model.CallRecord{testCall("c1", "201011112222", "ANSWERED", false, "")})
	require.NoError(t, err)

	// migrate again: existing data untouched
	require.NoError(t, s.Migrate(ctx))
	stats, err := s.CallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalCalls)

	// reset: explicit wipe
	require.NoError(t, s.Reset(ctx))
	stats, err = s.CallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCalls)
}

func TestSQLite_EmptyAggregates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	stats, err := s.CallStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCalls)
	assert.Zero(t, stats.AvgDuration)

	channels, err := s.ChannelCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)

	leads, err := s.ListFreshLeads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, leads)
}
