package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Log stream viewers only ever send control frames, so the read side is
// small and exists to keep the pong deadline moving.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one browser viewing the live processing log.
type Client struct {
	hub         *Hub
	conn        Connection
	send        chan []byte
	id          string
	remoteAddr  string
	connectedAt time.Time
	logger      *slog.Logger
}

// NewClient wraps conn for hub. A nil logger falls back to the hub's.
func NewClient(hub *Hub, conn Connection, logger *slog.Logger) *Client {
	if logger == nil {
		logger = hub.logger
	}
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          uuid.NewString(),
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
	}
	c.logger = logger.With(slog.String("component", "websocket.client"), slog.String("client_id", c.id))
	return c
}

func (c *Client) ID() string {
	return c.id
}

// ReadPump discards incoming frames until the peer disconnects, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.Warn("log viewer disconnected abnormally", slog.String("error", err.Error()))
		}
		return
	}
}

// WritePump forwards log lines to the peer and pings it periodically. It
// sends a close frame once the hub closes the send channel.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var kind int
		var payload []byte
		select {
		case line, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			kind, payload = websocket.TextMessage, line
		case <-ping.C:
			kind = websocket.PingMessage
		}

		if err := c.write(kind, payload); err != nil {
			c.logger.Debug("log stream write failed", slog.Int("frame", kind), slog.String("error", err.Error()))
			return
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

// ServeWS attaches an upgraded connection to hub. The connection is closed
// straight away when the hub has already stopped.
func ServeWS(hub *Hub, conn *websocket.Conn, logger *slog.Logger) {
	client := NewClient(hub, NewConnectionWrapper(conn), logger)
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
