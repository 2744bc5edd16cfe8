// Package notify fans job events out to connected clients. Delivery is
// best-effort: a user without an attached connection simply misses the event
// and reconciles true state through the job query endpoints.
package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra/metrics"
)

// Conn is the write side of a notification channel. *websocket.Conn wrapped
// by NewWSConn satisfies it; tests substitute their own.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub owns the user -> connection mapping. At most one connection is active
// per user; attaching a new one replaces (and closes) the previous.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]Conn
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{conns: make(map[string]Conn), logger: logger}
}

// Attach registers the user's connection, silently replacing any existing one.
func (h *Hub) Attach(userID string, conn Conn) {
	h.mu.Lock()
	old := h.conns[userID]
	h.conns[userID] = conn
	h.mu.Unlock()
	if old != nil {
		_ = old.Close()
		h.logger.Debug().Str("user_id", userID).Msg("notify: replaced connection")
	}
}

// Detach removes the connection if it is still the user's current one. A
// stale detach after a replacement is ignored.
func (h *Hub) Detach(userID string, conn Conn) {
	h.mu.Lock()
	if h.conns[userID] == conn {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
}

// Publish forwards the event to the user's connection. Events for users with
// no attached connection are dropped; send failures detach the connection but
// never propagate to the caller.
//
// The write happens outside the hub lock so one slow peer cannot stall
// delivery to everyone else. Per-job emission order is preserved anyway: a
// job's events are published sequentially by its run goroutine, and the
// connection serializes writers.
func (h *Hub) Publish(ev domain.JobEvent) {
	h.mu.Lock()
	conn, ok := h.conns[ev.UserID]
	h.mu.Unlock()
	if !ok {
		metrics.EventDropped()
		return
	}
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("notify: send failed, dropping connection")
		h.Detach(ev.UserID, conn)
		_ = conn.Close()
		metrics.EventDropped()
		return
	}
	metrics.EventSent()
}

// Connected reports whether the user currently has a connection attached.
func (h *Hub) Connected(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[userID]
	return ok
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conn := range h.conns {
		_ = conn.Close()
		delete(h.conns, userID)
	}
}

// writeWait bounds every websocket send. A peer that stops reading fills its
// TCP buffer; without a deadline the write would block forever.
const writeWait = 10 * time.Second

// wsConn serializes writes to a gorilla connection, which permits only one
// concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSConn wraps a websocket connection for use with the hub.
func NewWSConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
