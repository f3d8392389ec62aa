package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe-cli/internal/model"
)

// ExportFreshLeads creates one Notion page per fresh-lead call record.
// Returns the number of pages created; stops at the first API failure so a
// retry resumes from the stored table rather than duplicating earlier pages
// silently.
func ExportFreshLeads(ctx context.Context, c Client, dbID string, leads []model.CallRecord) (int, error) {
	created := 0
	for _, lead := range leads {
		req := leadPageRequest(dbID, lead)
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrapf(err, "notion: export lead %s", lead.CallID)
		}
		created++
	}

	zap.L().Info("notion export complete", zap.Int("pages", created))
	return created, nil
}

func leadPageRequest(dbID string, lead model.CallRecord) *notionapi.PageCreateRequest {
	props := notionapi.Properties{
		"Phone": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: lead.CallTo}}},
		},
		"Call ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: lead.CallID}}},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: lead.Status},
		},
	}

	if lead.Source.Valid {
		props["Source"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: lead.Source.String},
		}
	}
	if lead.CallDate.Valid {
		date := notionapi.Date(lead.CallDate.Time)
		props["Call Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	}
}
