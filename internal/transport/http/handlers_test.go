package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactcli/internal/services"
	"contactcli/internal/shared/testutil"
	ws "contactcli/internal/websocket"
)

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewHealthHandler(services.NewHealthService("1.0.0", "", "abc", services.NewResultStore(0, 0), nil, logger), logger)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		key     string
		want    any
	}{
		{"health", h.HealthCheck, "status", "ok"},
		{"live", h.LivenessCheck, "status", "alive"},
		{"version", h.Version, "build_id", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.want, body[tt.key])
		})
	}
}

func TestHealthRoutesNoStore(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	NewHealthHandler(services.NewHealthService("1.0.0", "", "", nil, nil, logger), logger).Register(r)

	for _, path := range []string{"/health", "/health/live", "/version"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), path)
	}
}

func TestServeIndex(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	ServeIndex(PageData{Version: "1.0.0", MaxFiles: 20, OutputFormat: "xlsx"}, logger)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Upload up to 20 contact export CSV files")
	assert.Contains(t, body, `name="files[]"`)
	assert.Contains(t, body, "/ws/logs")
}

func TestMetricsHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "contacts_handler_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(2)

	rec := httptest.NewRecorder()
	NewMetricsHandler(reg, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contacts_handler_test_total 2")
}

func TestLogStreamHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := ws.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewLogStreamHandler(hub, []string{"http://allowed.example"}, logger))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("rejects foreign origin", func(t *testing.T) {
		_, resp, err := gorilla.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("streams log lines", func(t *testing.T) {
		conn, _, err := gorilla.DefaultDialer.Dial(url, http.Header{"Origin": {"http://allowed.example"}})
		require.NoError(t, err)
		defer conn.Close()

		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, ws.TypeConnection, msg.Type)
		id, _ := msg.Data.(map[string]any)["client_id"].(string)

		hub.Stream(id).Emit(slog.LevelInfo, "Final rows: 1")
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, ws.TypeLog, msg.Type)
		assert.Equal(t, "Final rows: 1", msg.Data.(map[string]any)["message"])
	})
}
