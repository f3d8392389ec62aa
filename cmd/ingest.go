package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadpipe-cli/internal/fetcher"
	"github.com/sells-group/leadpipe-cli/internal/model"
	"github.com/sells-group/leadpipe-cli/internal/phone"
	"github.com/sells-group/leadpipe-cli/internal/pipeline"
	"github.com/sells-group/leadpipe-cli/internal/tabular"
)

var (
	ingestCallsPath string
	ingestChatsPath string
	ingestFormat    string
	ingestEncoding  string
	ingestDryRun    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest call and chat export files",
	Long: "Parses a telephony call log and/or a chat session export, normalizes " +
		"phone numbers and timestamps, flags calls that reached a same-day chat " +
		"lead, and stores the records. Paths may be local files or http/ftp URLs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if ingestCallsPath == "" && ingestChatsPath == "" {
			return eris.New("at least one of --calls or --chats is required")
		}

		var callTable, chatTable *tabular.Table
		g, gctx := errgroup.WithContext(ctx)
		if ingestCallsPath != "" {
			g.Go(func() error {
				t, err := loadTable(gctx, ingestCallsPath)
				callTable = t
				return err
			})
		}
		if ingestChatsPath != "" {
			g.Go(func() error {
				t, err := loadTable(gctx, ingestChatsPath)
				chatTable = t
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		proc := pipeline.New(phone.Normalizer{
			CountryPrefix: cfg.Phone.CountryPrefix,
			TrunkPrefix:   cfg.Phone.TrunkPrefix,
		})

		var (
			chats []model.ChatRecord
			calls []model.CallRecord
			err   error
		)
		if chatTable != nil {
			chats, err = proc.ProcessChats(chatTable)
			if err != nil {
				return eris.Wrapf(err, "process chats %s", ingestChatsPath)
			}
		}
		if callTable != nil {
			if chatTable != nil {
				calls, err = proc.ProcessCalls(callTable, chatTable)
			} else {
				zap.L().Warn("no chat file given, calls will not be matched against leads")
				calls, err = proc.ProcessCallsIndexed(callTable, nil)
			}
			if err != nil {
				return eris.Wrapf(err, "process calls %s", ingestCallsPath)
			}
		}

		if ingestDryRun {
			zap.L().Info("dry run, nothing stored",
				zap.Int("calls", len(calls)),
				zap.Int("chats", len(chats)),
				zap.Int("fresh_leads", countFreshLeads(calls)),
			)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(map[string]any{
				"calls": calls,
				"chats": chats,
			}), "encode dry run output")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		chatsInserted, err := st.UpsertChats(ctx, chats)
		if err != nil {
			return eris.Wrap(err, "store chats")
		}
		callsInserted, err := st.UpsertCalls(ctx, calls)
		if err != nil {
			return eris.Wrap(err, "store calls")
		}

		batch := model.IngestBatch{
			ID:            uuid.NewString(),
			CallsFile:     ingestCallsPath,
			ChatsFile:     ingestChatsPath,
			CallsInserted: int(callsInserted),
			ChatsInserted: int(chatsInserted),
			CreatedAt:     time.Now().UTC(),
		}
		if err := st.RecordIngestBatch(ctx, batch); err != nil {
			return eris.Wrap(err, "record ingest batch")
		}

		zap.L().Info("ingest complete",
			zap.String("batch", batch.ID),
			zap.Int("calls_parsed", len(calls)),
			zap.Int64("calls_inserted", callsInserted),
			zap.Int("chats_parsed", len(chats)),
			zap.Int64("chats_inserted", chatsInserted),
			zap.Int("fresh_leads", countFreshLeads(calls)),
		)
		return nil
	},
}

// loadTable reads an export file into a table, downloading it first when the
// path is a URL. Format is taken from --format, falling back to the file
// extension.
func loadTable(ctx context.Context, path string) (*tabular.Table, error) {
	local := path
	if fetcher.IsRemote(path) {
		f, err := fetcher.ForURL(path, fetcher.Options{
			Timeout:        time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RequestsPerSec: cfg.Fetch.RequestsPerSec,
		})
		if err != nil {
			return nil, err
		}

		tmp, err := os.CreateTemp("", "leadpipe-*"+filepath.Ext(path))
		if err != nil {
			return nil, eris.Wrap(err, "create temp file")
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		n, err := fetcher.DownloadToFile(ctx, f, path, tmp.Name())
		if err != nil {
			return nil, err
		}
		zap.L().Info("downloaded export",
			zap.String("url", path),
			zap.Int64("bytes", n),
		)
		local = tmp.Name()
	}

	if tableFormat(path) == "xlsx" {
		return tabular.ReadXLSX(local)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", local)
	}
	defer f.Close()

	encoding := ingestEncoding
	if encoding == "" {
		encoding = cfg.Ingest.Encoding
	}
	return tabular.ReadCSV(f, tabular.ReadOptions{
		Delimiter: delimiterRune(cfg.Ingest.Delimiter),
		Encoding:  encoding,
	})
}

func tableFormat(path string) string {
	if ingestFormat != "" {
		return ingestFormat
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return "xlsx"
	}
	return "csv"
}

func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}

func countFreshLeads(calls []model.CallRecord) int {
	n := 0
	for _, c := range calls {
		if c.IsFreshLead {
			n++
		}
	}
	return n
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCallsPath, "calls", "", "call log export (path or URL)")
	ingestCmd.Flags().StringVar(&ingestChatsPath, "chats", "", "chat session export (path or URL)")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "input format: csv or xlsx (default: by extension)")
	ingestCmd.Flags().StringVar(&ingestEncoding, "encoding", "", "CSV character encoding, e.g. windows-1256")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse and match without storing")
	rootCmd.AddCommand(ingestCmd)
}
