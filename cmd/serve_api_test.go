//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe-cli/internal/config"
	"github.com/sells-group/leadpipe-cli/internal/report"
	"github.com/sells-group/leadpipe-cli/internal/store"
)

// newTestAPI wires a real sqlite store in a temp dir behind the router.
func newTestAPI(t *testing.T) (*apiServer, http.Handler) {
	t.Helper()

	cfg = &config.Config{
		Ingest: config.IngestConfig{Delimiter: ","},
		Phone:  config.PhoneConfig{CountryPrefix: "2", TrunkPrefix: "01"},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	api := newAPIServer(st)
	return api, api.routes()
}

func TestServeAPI_Health(t *testing.T) {
	_, h := newTestAPI(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeAPI_SummaryEmptyStore(t *testing.T) {
	_, h := newTestAPI(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var sum report.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Zero(t, sum.TotalLeads)
	assert.Zero(t, sum.ConversionRate)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, content := range files {
		part, err := w.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestServeAPI_IngestUpload(t *testing.T) {
	_, h := newTestAPI(t)

	chatsCSV := "#,Type,Status,Channel,Client,Created on\n" +
		"ch1,chat,closed,Facebook,01012345678,2024-03-01 10:00:00\n"
	callsCSV := "ID,Time,Call From,Call To,Status\n" +
		"c1,2024-03-01 11:00:00,<100>01099999999,01012345678,ANSWERED\n"

	body, contentType := multipartBody(t, map[string]string{
		"calls": callsCSV,
		"chats": chatsCSV,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var batch struct {
		ID            string `json:"id"`
		CallsInserted int    `json:"calls_inserted"`
		ChatsInserted int    `json:"chats_inserted"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &batch))
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 1, batch.CallsInserted)
	assert.Equal(t, 1, batch.ChatsInserted)

	// The uploaded call reached a same-day chat lead.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fresh-leads", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var leads []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &leads))
	require.Len(t, leads, 1)
}

func TestServeAPI_IngestUpload_NoFiles(t *testing.T) {
	_, h := newTestAPI(t)

	body, contentType := multipartBody(t, map[string]string{})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeAPI_IngestUpload_BadSchema(t *testing.T) {
	_, h := newTestAPI(t)

	body, contentType := multipartBody(t, map[string]string{
		"chats": "Foo,Bar\n1,2\n",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing")
}

func TestServeAPI_ResponseTimesAndFunnel(t *testing.T) {
	_, h := newTestAPI(t)

	for _, path := range []string{
		"/api/funnel",
		"/api/channels",
		"/api/agents",
		"/api/call-status",
		"/api/hourly-volume",
		"/api/fresh-leads/by-date",
		"/api/conversion",
		"/api/response-times",
		"/api/report",
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}
