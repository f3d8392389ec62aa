package main

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe-cli/internal/model"
	"github.com/sells-group/leadpipe-cli/internal/phone"
	"github.com/sells-group/leadpipe-cli/internal/pipeline"
	"github.com/sells-group/leadpipe-cli/internal/report"
	"github.com/sells-group/leadpipe-cli/internal/store"
	"github.com/sells-group/leadpipe-cli/internal/tabular"
)

const maxUploadBytes = 64 << 20

type apiServer struct {
	store store.Store
	svc   *report.Service
	proc  *pipeline.Processor
}

func newAPIServer(st store.Store) *apiServer {
	return &apiServer{
		store: st,
		svc:   report.New(st),
		proc: pipeline.New(phone.Normalizer{
			CountryPrefix: cfg.Phone.CountryPrefix,
			TrunkPrefix:   cfg.Phone.TrunkPrefix,
		}),
	}
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/report", s.handleReport)
		r.Get("/funnel", s.handleFunnel)
		r.Get("/channels", s.handleChannels)
		r.Get("/agents", s.handleAgents)
		r.Get("/call-status", s.handleCallStatus)
		r.Get("/hourly-volume", s.handleHourlyVolume)
		r.Get("/fresh-leads", s.handleFreshLeads)
		r.Get("/fresh-leads/by-date", s.handleFreshLeadsByDate)
		r.Get("/conversion", s.handleConversion)
		r.Get("/response-times", s.handleResponseTimes)
		r.Post("/ingest", s.handleIngest)
	})

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *apiServer) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Full(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *apiServer) handleFunnel(w http.ResponseWriter, r *http.Request) {
	funnel, err := s.store.Funnel(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

func (s *apiServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ChannelCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *apiServer) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.AgentStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *apiServer) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.CallStatusCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *apiServer) handleHourlyVolume(w http.ResponseWriter, r *http.Request) {
	hourly, err := s.store.HourlyCallVolume(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hourly)
}

func (s *apiServer) handleFreshLeads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	leads, err := s.store.ListFreshLeads(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *apiServer) handleFreshLeadsByDate(w http.ResponseWriter, r *http.Request) {
	byDate, err := s.store.FreshLeadsByDate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, byDate)
}

func (s *apiServer) handleConversion(w http.ResponseWriter, r *http.Request) {
	conversion, err := s.store.ConversionBySource(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversion)
}

func (s *apiServer) handleResponseTimes(w http.ResponseWriter, r *http.Request) {
	buckets, _ := strconv.Atoi(r.URL.Query().Get("buckets"))
	histogram, err := s.svc.ResponseTimeHistogram(r.Context(), buckets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, histogram)
}

// handleIngest accepts a multipart upload with "calls" and/or "chats" file
// parts and runs the same pipeline as the CLI ingest command.
func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	callTable, callsName, err := uploadedTable(r, "calls")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	chatTable, chatsName, err := uploadedTable(r, "chats")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if callTable == nil && chatTable == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one of calls or chats file is required"})
		return
	}

	var (
		chats []model.ChatRecord
		calls []model.CallRecord
	)
	if chatTable != nil {
		chats, err = s.proc.ProcessChats(chatTable)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}
	if callTable != nil {
		if chatTable != nil {
			calls, err = s.proc.ProcessCalls(callTable, chatTable)
		} else {
			calls, err = s.proc.ProcessCallsIndexed(callTable, nil)
		}
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}

	chatsInserted, err := s.store.UpsertChats(ctx, chats)
	if err != nil {
		writeError(w, err)
		return
	}
	callsInserted, err := s.store.UpsertCalls(ctx, calls)
	if err != nil {
		writeError(w, err)
		return
	}

	batch := model.IngestBatch{
		ID:            uuid.NewString(),
		CallsFile:     callsName,
		ChatsFile:     chatsName,
		CallsInserted: int(callsInserted),
		ChatsInserted: int(chatsInserted),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.RecordIngestBatch(ctx, batch); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// uploadedTable parses one optional file part. A missing part is not an
// error; both (nil, "", nil) are returned.
func uploadedTable(r *http.Request, field string) (*tabular.Table, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		t, err := spooledXLSX(file, header.Filename)
		return t, header.Filename, err
	}

	t, err := tabular.ReadCSV(file, tabular.ReadOptions{
		Delimiter: delimiterRune(cfg.Ingest.Delimiter),
		Encoding:  cfg.Ingest.Encoding,
	})
	if err != nil {
		return nil, "", err
	}
	return t, header.Filename, nil
}

// spooledXLSX writes the upload to a temp file first; the xlsx reader needs
// a seekable path.
func spooledXLSX(file multipart.File, name string) (*tabular.Table, error) {
	tmp, err := os.CreateTemp("", "leadpipe-upload-*.xlsx")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	return tabular.ReadXLSX(tmp.Name())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
