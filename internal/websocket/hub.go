package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"contactcli/internal/infrastructure"
)

// Message types sent to clients
const (
	TypeConnection = "connection"
	TypeLog        = "log"
)

const queueBuffer = 256

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// LogData is the payload of a TypeLog message.
type LogData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Line    string `json:"line"`
}

// delivery is one frame addressed to a single client.
type delivery struct {
	to   string
	data []byte
}

// Hub maintains the set of active clients and delivers log frames to them.
// Pipeline lines reach only the client that started the run, through the sink
// returned by Stream.
type Hub struct {
	clients    map[*Client]bool
	queue      chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu       sync.RWMutex
	logger   *slog.Logger
	now      func() time.Time
	minLevel slog.Level

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		queue:      make(chan delivery, queueBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		now:        time.Now,
		minLevel:   slog.LevelInfo, // debug lines carry row contents
	}
}

// Run delivers registrations and queued frames until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", slog.Int("clients", h.ClientCount()))
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			if data, err := h.encode(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case d := <-h.queue:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.id != d.to {
			continue
		}
		select {
		case client.send <- d.data:
			h.messagesSent.Add(1)
		default:
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	})
}

// Register adds a client. It returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Stream returns a sink that delivers log lines at or above the hub's minimum
// level to the client with the given id only. Lines for a client that is not
// connected are discarded, as is everything when clientID is empty.
func (h *Hub) Stream(clientID string) infrastructure.LogSink {
	if clientID == "" {
		return infrastructure.DiscardSink
	}
	return &stream{hub: h, clientID: clientID}
}

// Send wraps data in a Message of the given type and queues it for one
// client. Frames are dropped when the queue is full so callers never block on
// slow browsers.
func (h *Hub) Send(clientID, msgType string, data any) {
	frame, err := h.encode(msgType, data)
	if err != nil {
		h.logger.Error("failed to marshal websocket message",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.queue <- delivery{to: clientID, data: frame}:
	default:
		h.messagesDropped.Add(1)
	}
}

type stream struct {
	hub      *Hub
	clientID string
}

// Emit implements infrastructure.LogSink
func (s *stream) Emit(level slog.Level, msg string) {
	if level < s.hub.minLevel {
		return
	}
	line := infrastructure.LogLine{Time: s.hub.now(), Level: level, Message: msg}
	s.hub.Send(s.clientID, TypeLog, LogData{
		Level:   strings.ToLower(level.String()),
		Message: msg,
		Line:    line.String(),
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats is a snapshot of hub counters.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Stats returns current hub counters
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

func (h *Hub) encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: h.now().Format(time.RFC3339),
	})
}
