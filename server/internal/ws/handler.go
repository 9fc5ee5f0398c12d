package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pricestream/pricestream/server/internal/event"
	"github.com/pricestream/pricestream/server/internal/hub"
)

const (
	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON object sent to clients for every envelope.
type Message struct {
	ID    uint64          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// Handler upgrades requests and subscribes the resulting connections to a hub.
type Handler struct {
	hub          *hub.Hub
	writeTimeout time.Duration
}

// New creates a Handler that registers connections with h.
func New(h *hub.Hub, writeTimeout time.Duration) *Handler {
	return &Handler{hub: h, writeTimeout: writeTimeout}
}

// ServeHTTP upgrades the connection and blocks until it closes. The hub pushes
// a fresh envelope right after the upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &conn{ws: ws, timeout: h.writeTimeout}
	defer c.ws.Close()

	gone := make(chan struct{})
	go func() {
		c.readPump()
		close(gone)
	}()

	sub := h.hub.Subscribe(r.Context(), c)
	defer h.hub.Unsubscribe(sub)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			slog.Debug("ws: client disconnected", "sub", sub.ID())
			return
		case <-sub.Done():
			c.closeMessage()
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// conn adapts a websocket connection to hub.Conn. gorilla/websocket allows a
// single concurrent writer, so writes are serialized.
type conn struct {
	ws      *websocket.Conn
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

var errClosed = errors.New("ws: connection closed")

func (c *conn) Send(f event.Frame) error {
	msg, err := json.Marshal(Message{ID: f.ID, Event: f.Data})
	if err != nil {
		return fmt.Errorf("ws: encode frame %d: %w", f.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout)) //nolint:errcheck
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("ws: write frame %d: %w", f.ID, err)
	}
	return nil
}

// Close marks the connection closed for writers and tears down the socket,
// which also unblocks readPump.
func (c *conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.ws.Close()
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout)) //nolint:errcheck
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *conn) closeMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout))    //nolint:errcheck
	c.ws.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
}

// readPump reads frames to process control messages (pong, close) and detect
// disconnects. Blocks until the connection closes.
func (c *conn) readPump() {
	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
