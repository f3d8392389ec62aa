// Package pipeline normalizes raw call and chat exports into record sets and
// cross-references them to classify fresh leads.
package pipeline

import (
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadpipe-cli/internal/model"
	"github.com/sells-group/leadpipe-cli/internal/phone"
	"github.com/sells-group/leadpipe-cli/internal/tabular"
)

// Expected chat export columns.
const (
	chatColID           = "#"
	chatColType         = "Type"
	chatColStatus       = "Status"
	chatColChannel      = "Channel"
	chatColClient       = "Client"
	chatColMessages     = "Messages"
	chatColEmployee     = "Employee"
	chatColCreatedOn    = "Created on"
	chatColClosedOn     = "Agent closed on"
	chatColConvDuration = "Conversation duration"
	chatColInitialResp  = "Initial response time"
	chatColTotalResp    = "Total response time"
	chatColAvgResp      = "Average response time"
	chatColCRM          = "CRM record"
)

// Processor turns raw export tables into normalized records. The zero value
// uses the default phone convention.
type Processor struct {
	Phone phone.Normalizer
}

// New returns a Processor using the given phone convention.
func New(norm phone.Normalizer) *Processor {
	return &Processor{Phone: norm}
}

// ProcessChats normalizes a raw chat export. Each datetime and numeric
// column is coerced independently; a malformed cell nulls only itself and
// the row is kept. Rows without a conversation id are dropped since they
// cannot satisfy the unique-key contract. IsFreshLead starts false and is
// only set once the table is compared against call data.
func (p *Processor) ProcessChats(t *tabular.Table) ([]model.ChatRecord, error) {
	if err := t.Require(chatColID, chatColChannel, chatColClient, chatColCreatedOn); err != nil {
		return nil, err
	}

	ids := t.Strings(chatColID)
	created := t.Times(chatColCreatedOn)
	closed := t.Times(chatColClosedOn)
	messages := t.Ints(chatColMessages)
	convDur := t.Ints(chatColConvDuration)
	initialResp := t.Ints(chatColInitialResp)
	avgResp := t.Ints(chatColAvgResp)
	totalResp := t.Floats(chatColTotalResp)

	records := make([]model.ChatRecord, 0, t.Len())
	dropped := 0
	for i := 0; i < t.Len(); i++ {
		if ids[i] == "" {
			dropped++
			continue
		}

		records = append(records, model.ChatRecord{
			ChatID:               ids[i],
			Type:                 strings.TrimSpace(t.Get(i, chatColType)),
			Status:               strings.TrimSpace(t.Get(i, chatColStatus)),
			Channel:              strings.TrimSpace(t.Get(i, chatColChannel)),
			Client:               strings.TrimSpace(t.Get(i, chatColClient)),
			Employee:             strings.TrimSpace(t.Get(i, chatColEmployee)),
			Messages:             messages[i].Int64,
			ConversationDuration: convDur[i].Int64,
			InitialResponseTime:  initialResp[i].Int64,
			AverageResponseTime:  avgResp[i].Int64,
			CreatedOn:            created[i],
			ClosedOn:             closed[i],
			ResponseTime:         totalResp[i].Float64,
			LeadDate:             dateOf(created[i]),
			PhoneNumber:          p.Phone.Normalize(t.Get(i, chatColClient)).Key,
			CRMRecord:            strings.EqualFold(strings.TrimSpace(t.Get(i, chatColCRM)), "yes"),
		})
	}

	if dropped > 0 {
		zap.L().Warn("dropped chat rows without conversation id", zap.Int("rows", dropped))
	}

	return records, nil
}

// dateOf truncates a nullable datetime to midnight UTC, preserving nullness.
func dateOf(t sql.NullTime) sql.NullTime {
	if !t.Valid {
		return sql.NullTime{}
	}
	y, m, d := t.Time.Date()
	return sql.NullTime{Time: dateAt(y, m, d), Valid: true}
}
