package notion

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe-cli/internal/model"
)

type fakeClient struct {
	requests []*notionapi.PageCreateRequest
	failAt   int // 0 = never fail
}

func (f *fakeClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if f.failAt > 0 && len(f.requests)+1 == f.failAt {
		return nil, assert.AnError
	}
	f.requests = append(f.requests, req)
	return &notionapi.Page{}, nil
}

func freshLead(id, phone, source string) model.CallRecord {
	return model.CallRecord{
		CallID:      id,
		CallTo:      phone,
		Status:      "ANSWERED",
		CallDate:    sql.NullTime{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		IsFreshLead: true,
		Source:      sql.NullString{String: source, Valid: true},
	}
}

func TestExportFreshLeads(t *testing.T) {
	fake := &fakeClient{}
	leads := []model.CallRecord{
		freshLead("c1", "201011112222", "Facebook"),
		freshLead("c2", "201033334444", "Instagram"),
	}

	n, err := ExportFreshLeads(context.Background(), fake, "db-123", leads)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, fake.requests, 2)

	req := fake.requests[0]
	assert.Equal(t, notionapi.DatabaseID("db-123"), req.Parent.DatabaseID)

	title, ok := req.Properties["Phone"].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "201011112222", title.Title[0].Text.Content)

	source, ok := req.Properties["Source"].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "Facebook", source.Select.Name)

	_, hasDate := req.Properties["Call Date"]
	assert.True(t, hasDate)
}

func TestExportFreshLeads_StopsOnFailure(t *testing.T) {
	fake := &fakeClient{failAt: 2}
	leads := []model.CallRecord{
		freshLead("c1", "201011112222", "Facebook"),
		freshLead("c2", "201033334444", "Instagram"),
		freshLead("c3", "201055556666", "Website"),
	}

	n, err := ExportFreshLeads(context.Background(), fake, "db-123", leads)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "c2")
}

func TestLeadPageRequest_OmitsNulls(t *testing.T) {
	lead := model.CallRecord{CallID: "c1", CallTo: "12345", Status: "BUSY"}
	req := leadPageRequest("db", lead)
	_, hasSource := req.Properties["Source"]
	_, hasDate := req.Properties["Call Date"]
	assert.False(t, hasSource)
	assert.False(t, hasDate)
}
