package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/primisapp/primis-backend/internal/infrastructure/config"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
)

// sendBufferSize is how many frames a slow client may fall behind before
// being dropped.
const sendBufferSize = 64

// writeWait bounds a single WebSocket write.
const writeWait = 10 * time.Second

var errSendBufferFull = errors.New("websocket: send buffer full")

// handleWebSocket upgrades the connection and registers it with the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.cfg.API.CORS.AllowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := newWSClient(conn, s.cfg.WebSocket, s.logger)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump(func() { s.hub.Unregister(client) })
}

// wsClient adapts one WebSocket connection to the hub's Subscriber
// interface.
//
// All writes to the connection go through writePump; Send only enqueues.
// A full queue means the client cannot keep up and is reported as a send
// failure so the hub drops it.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger

	pingInterval   time.Duration
	pongTimeout    time.Duration
	maxMessageSize int64
}

func newWSClient(conn *websocket.Conn, cfg config.WebSocketConfig, logger *logging.Logger) *wsClient {
	return &wsClient{
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		done:           make(chan struct{}),
		logger:         logger.With("component", "websocket"),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongTimeout:    time.Duration(cfg.PongTimeout) * time.Second,
		maxMessageSize: int64(cfg.MaxMessageSize),
	}
}

// Send enqueues one frame for delivery. Never blocks.
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("websocket: client closed")
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close tears the connection down. Idempotent.
func (c *wsClient) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close() //nolint:errcheck // connection is going away
	})
	return nil
}

// writePump drains the send queue onto the connection and keeps the
// client alive with periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // deadline on live conn
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close() //nolint:errcheck // already failing
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // deadline on live conn
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close() //nolint:errcheck // already failing
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection drops.
//
// Clients are listen-only; anything they send is discarded. The read loop
// exists to process control frames and to notice disconnects, at which
// point onClose removes the client from the hub.
func (c *wsClient) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(c.maxMessageSize)
	deadline := c.pingInterval + c.pongTimeout
	c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // deadline on live conn
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}
