// Package websocket exposes a live monitoring socket for the researcher
// dashboard. It carries the same event stream as the SSE broker but over a
// bidirectional connection, which the dashboard uses for its ping-based
// liveness indicator.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard is served from the API origin; same-origin checks happen in
	// the auth middleware before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *connection) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks connected monitor sockets and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[*connection]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*connection]bool)}
}

// ServeHTTP upgrades the request and keeps the socket registered until the
// peer disconnects. Inbound messages are drained and discarded; the monitor
// stream is one-way.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade failed: %v", err)
		return
	}

	c := &connection{conn: conn}
	h.mu.Lock()
	h.conns[c] = true
	total := len(h.conns)
	h.mu.Unlock()
	log.Printf("Monitor socket connected. Total: %d", total)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	// Read loop, exits when the peer closes or errors.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)

	h.mu.Lock()
	delete(h.conns, c)
	total = len(h.conns)
	h.mu.Unlock()
	conn.Close()
	log.Printf("Monitor socket disconnected. Total: %d", total)
}

// Broadcast sends an event to every connected monitor. Connections that fail
// to accept the write are dropped.
func (h *Hub) Broadcast(event string, payload interface{}) {
	msg := struct {
		Event     string      `json:"event"`
		Timestamp time.Time   `json:"timestamp"`
		Payload   interface{} `json:"payload"`
	}{Event: event, Timestamp: time.Now(), Payload: payload}

	// Pre-check the payload marshals; WriteJSON would fail per-connection.
	if _, err := json.Marshal(msg); err != nil {
		log.Printf("Error marshalling monitor message: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			h.mu.Lock()
			delete(h.conns, c)
			h.mu.Unlock()
			c.conn.Close()
		}
	}
}

// Count returns the number of connected monitors, for the admin overview.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
