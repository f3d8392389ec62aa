package pipeline

import (
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadpipe-cli/internal/model"
	"github.com/sells-group/leadpipe-cli/internal/tabular"
)

// Expected call export columns.
const (
	callColID           = "ID"
	callColTime         = "Time"
	callColFrom         = "Call From"
	callColTo           = "Call To"
	callColDuration     = "Call Duration"
	callColRingDuration = "Ring Duration"
	callColTalkDuration = "Talk Duration"
	callColStatus       = "Status"
	callColRecording    = "Recording File"
	callColCommType     = "Communication Type"
)

// LeadIndex maps (canonical phone key, calendar day) to the acquisition
// channel of the first reference lead recorded for that pair. First
// occurrence in reference order wins; same-day leads from other channels
// are not disambiguated further.
type LeadIndex struct {
	sources map[string]string
}

func leadKey(phoneKey string, day time.Time) string {
	return phoneKey + "|" + day.Format("2006-01-02")
}

// Len returns the number of distinct (phone, day) pairs.
func (idx *LeadIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.sources)
}

// Lookup returns the channel attributed to the pair, if any.
func (idx *LeadIndex) Lookup(phoneKey string, day time.Time) (string, bool) {
	if idx == nil {
		return "", false
	}
	src, ok := idx.sources[leadKey(phoneKey, day)]
	return src, ok
}

// LeadIndexFromTable derives a LeadIndex from a raw chat export, performing
// its own phone and date derivation so callers can pass reference data that
// has not been through ProcessChats.
func (p *Processor) LeadIndexFromTable(t *tabular.Table) (*LeadIndex, error) {
	if err := t.Require(chatColClient, chatColCreatedOn, chatColChannel); err != nil {
		return nil, err
	}

	created := t.Times(chatColCreatedOn)
	idx := &LeadIndex{sources: make(map[string]string, t.Len())}
	for i := 0; i < t.Len(); i++ {
		if !created[i].Valid {
			continue
		}
		key := leadKey(p.Phone.Normalize(t.Get(i, chatColClient)).Key, created[i].Time)
		if _, seen := idx.sources[key]; !seen {
			idx.sources[key] = strings.TrimSpace(t.Get(i, chatColChannel))
		}
	}
	return idx, nil
}

// LeadIndexFromChats derives a LeadIndex from already-processed chat records.
func LeadIndexFromChats(chats []model.ChatRecord) *LeadIndex {
	idx := &LeadIndex{sources: make(map[string]string, len(chats))}
	for _, c := range chats {
		if !c.LeadDate.Valid {
			continue
		}
		key := leadKey(c.PhoneNumber, c.LeadDate.Time)
		if _, seen := idx.sources[key]; !seen {
			idx.sources[key] = c.Channel
		}
	}
	return idx
}

// ProcessCalls normalizes a raw call export and, when a reference lead table
// is supplied, classifies fresh leads: a call is a fresh lead iff its callee
// was recorded as a lead on the same calendar day. The reference table is
// never mutated. A reference table that cannot be evaluated degrades the
// whole batch to no-match with a warning rather than failing the ingest.
func (p *Processor) ProcessCalls(t *tabular.Table, leads *tabular.Table) ([]model.CallRecord, error) {
	if err := t.Require(callColID, callColTime, callColFrom, callColTo, callColStatus); err != nil {
		return nil, err
	}

	var idx *LeadIndex
	if leads != nil && leads.Len() > 0 {
		var err error
		idx, err = p.LeadIndexFromTable(leads)
		if err != nil {
			zap.L().Warn("fresh-lead matching skipped: reference data unusable", zap.Error(err))
			idx = nil
		}
	}

	return p.processCalls(t, idx), nil
}

// ProcessCallsIndexed is ProcessCalls against a prebuilt LeadIndex.
func (p *Processor) ProcessCallsIndexed(t *tabular.Table, idx *LeadIndex) ([]model.CallRecord, error) {
	if err := t.Require(callColID, callColTime, callColFrom, callColTo, callColStatus); err != nil {
		return nil, err
	}
	return p.processCalls(t, idx), nil
}

func (p *Processor) processCalls(t *tabular.Table, idx *LeadIndex) []model.CallRecord {
	ids := t.Strings(callColID)
	// Atomic per column: a single unparseable timestamp nulls the whole
	// column so derived dates are never partially populated.
	times := t.TimesAtomic(callColTime)
	durations := t.Floats(callColDuration)
	ringDurations := t.Floats(callColRingDuration)
	talkDurations := t.Floats(callColTalkDuration)

	records := make([]model.CallRecord, 0, t.Len())
	dropped, matched := 0, 0
	for i := 0; i < t.Len(); i++ {
		if ids[i] == "" {
			dropped++
			continue
		}

		callTo := p.Phone.Normalize(t.Get(i, callColTo))
		callDate := dateOf(times[i])

		rec := model.CallRecord{
			CallID:            ids[i],
			Timestamp:         times[i],
			CallFrom:          p.Phone.Normalize(t.Get(i, callColFrom)).Key,
			CallTo:            callTo.Key,
			Duration:          durations[i].Float64,
			RingDuration:      ringDurations[i].Float64,
			TalkDuration:      talkDurations[i].Float64,
			Status:            strings.TrimSpace(t.Get(i, callColStatus)),
			RecordingFile:     nullString(t.Get(i, callColRecording)),
			CommunicationType: nullString(t.Get(i, callColCommType)),
			CallDate:          callDate,
		}

		if callDate.Valid {
			if source, ok := idx.Lookup(callTo.Key, callDate.Time); ok {
				rec.IsFreshLead = true
				rec.Source = sql.NullString{String: source, Valid: true}
				matched++
			}
		}

		records = append(records, rec)
	}

	if dropped > 0 {
		zap.L().Warn("dropped call rows without id", zap.Int("rows", dropped))
	}
	if idx.Len() > 0 {
		zap.L().Info("fresh-lead matching complete",
			zap.Int("calls", len(records)),
			zap.Int("fresh_leads", matched),
		)
	}

	return records
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func dateAt(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
