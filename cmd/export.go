package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe-cli/pkg/notion"
)

var exportNotionLimit int

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records to external systems",
}

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Push fresh leads into the Notion CRM database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (LEADPIPE_NOTION_TOKEN)")
		}
		if cfg.Notion.LeadDB == "" {
			return eris.New("notion lead DB ID is required (LEADPIPE_NOTION_LEAD_DB)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		leads, err := st.ListFreshLeads(ctx, exportNotionLimit)
		if err != nil {
			return eris.Wrap(err, "list fresh leads")
		}
		if len(leads) == 0 {
			zap.L().Info("no fresh leads to export")
			return nil
		}

		client := notion.NewClient(cfg.Notion.Token)
		created, err := notion.ExportFreshLeads(ctx, client, cfg.Notion.LeadDB, leads)
		if err != nil {
			return eris.Wrapf(err, "exported %d of %d leads", created, len(leads))
		}

		zap.L().Info("export complete",
			zap.Int("created", created),
			zap.String("database", cfg.Notion.LeadDB),
		)
		return nil
	},
}

func init() {
	exportNotionCmd.Flags().IntVar(&exportNotionLimit, "limit", 100, "maximum leads to export")
	exportCmd.AddCommand(exportNotionCmd)
	rootCmd.AddCommand(exportCmd)
}
