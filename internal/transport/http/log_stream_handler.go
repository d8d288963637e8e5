package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	ws "contactcli/internal/websocket"
)

// LogStreamHandler upgrades GET /ws/logs to a websocket that receives the
// pipeline log lines of the requests that name its client id.
type LogStreamHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLogStreamHandler creates a log stream handler. Browsers on other origins
// must be listed in allowedOrigins; same-host and origin-less requests are
// always accepted.
func NewLogStreamHandler(hub *ws.Hub, allowedOrigins []string, logger *slog.Logger) *LogStreamHandler {
	logger = logger.With(slog.String("handler", "log_stream"))
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	h := &LogStreamHandler{hub: hub, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				return true
			}
			logger.WarnContext(r.Context(), "websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
	return h
}

// ServeHTTP implements http.Handler
func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	ws.ServeWS(h.hub, conn, h.logger)
}
