package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactcli/internal/config"
	"contactcli/internal/exporter"
	"contactcli/internal/shared/testutil"
	api "contactcli/pkg/contracts/api/v1"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	logger, _ := testutil.NewTestLogger(t)

	a, err := New(cfg, logger)
	require.NoError(t, err)
	return a
}

func TestRoutes(t *testing.T) {
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	tests := []struct {
		path        string
		wantStatus  int
		contentType string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/health", http.StatusOK, "application/json"},
		{"/api/health/live", http.StatusOK, "application/json"},
		{"/api/version", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
		{"/api/unknown", http.StatusNotFound, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestUploadAndDownload(t *testing.T) {
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files[]", "list.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(testutil.ContactCSV(t, []string{"Email address", "Company"},
		[]string{"a@gmail.com", ""},
		[]string{"b@acme.com", "Acme"},
	)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/contacts/uploads", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var upload api.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&upload))
	require.Len(t, upload.Files, 1)
	require.True(t, upload.Files[0].Success, upload.Files[0].Error)
	assert.Equal(t, 2, upload.Files[0].RowsIn)
	assert.Equal(t, 1, upload.Files[0].RowsOut)
	assert.Contains(t, upload.Log, "Rows with NA in Email address: 0")

	dl, err := http.Get(srv.URL + upload.Files[0].DownloadURL)
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)

	path := filepath.Join(t.TempDir(), "list.xlsx")
	out, err := os.Create(path)
	require.NoError(t, err)
	_, err = out.ReadFrom(dl.Body)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	header, rows, err := exporter.ReadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "Task", "Company", "Email address"}, header)
	assert.Equal(t, [][]string{{"", "", "Acme", "b@acme.com"}}, rows)

	entries, err := os.ReadDir(a.Config.Paths.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFolderRunDisabledByDefault(t *testing.T) {
	a := newTestApp(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contacts/folder-runs", bytes.NewBufferString(`{"directory":"in"}`))
	req.Header.Set("Content-Type", "application/json")

	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Server.Port = 0
		cfg.Server.ShutdownTimeout = time.Second
	})
	a.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewPipelineUsesConfiguredFormat(t *testing.T) {
	p := NewPipeline(config.ProcessingConfig{OutputFormat: "csv", CaseInsensitiveDomains: true})
	opts := p.Options()
	assert.Equal(t, "csv", opts.OutputFormat)
	assert.True(t, opts.CaseInsensitiveDomains)
	assert.False(t, opts.RequireKeyColumn)
}
