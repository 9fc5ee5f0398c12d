package sse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pricestream/pricestream/server/internal/event"
	"github.com/pricestream/pricestream/server/internal/hub"
)

// Handler streams hub envelopes to SSE clients.
type Handler struct {
	hub          *hub.Hub
	writeTimeout time.Duration
	keepAlive    time.Duration
}

// New creates a Handler. keepAlive <= 0 disables comment pings.
func New(h *hub.Hub, writeTimeout, keepAlive time.Duration) *Handler {
	return &Handler{hub: h, writeTimeout: writeTimeout, keepAlive: keepAlive}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c := newConn(w, h.writeTimeout)
	if err := c.comment("ok"); err != nil {
		slog.Debug("sse: client gone before subscribe", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub := h.hub.Subscribe(r.Context(), c)
	defer h.hub.Unsubscribe(sub)
	slog.Debug("sse: stream open", "sub", sub.ID(), "remote", r.RemoteAddr)

	var ping <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("sse: client disconnected", "sub", sub.ID())
			return
		case <-sub.Done():
			return
		case <-ping:
			if err := c.comment("ping"); err != nil {
				slog.Debug("sse: keep-alive failed", "sub", sub.ID(), "err", err)
				return
			}
		}
	}
}

// conn adapts an http.ResponseWriter to hub.Conn. Writes come from the hub's
// writer goroutine and from the handler's keep-alive ticker, so they are
// serialized.
type conn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	closed  bool
}

var errClosed = errors.New("sse: stream closed")

func newConn(w http.ResponseWriter, timeout time.Duration) *conn {
	return &conn{w: w, rc: http.NewResponseController(w), timeout: timeout}
}

// Send writes one SSE record and flushes it.
func (c *conn) Send(f event.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	if err := c.setDeadline(); err != nil {
		return err
	}
	if _, err := f.WriteTo(c.w); err != nil {
		return fmt.Errorf("sse: write frame %d: %w", f.ID, err)
	}
	return c.flush()
}

// Close stops further writes. The handler goroutine owns the response and
// finishes it when it returns.
func (c *conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *conn) comment(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	if err := c.setDeadline(); err != nil {
		return err
	}
	if _, err := c.w.Write(event.Comment(text)); err != nil {
		return fmt.Errorf("sse: write comment: %w", err)
	}
	return c.flush()
}

func (c *conn) setDeadline() error {
	err := c.rc.SetWriteDeadline(time.Now().Add(c.timeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("sse: set write deadline: %w", err)
	}
	return nil
}

func (c *conn) flush() error {
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("sse: flush: %w", err)
	}
	return nil
}
