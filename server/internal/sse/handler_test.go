package sse_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricestream/pricestream/server/internal/hub"
	"github.com/pricestream/pricestream/server/internal/price"
	"github.com/pricestream/pricestream/server/internal/sse"
)

// --- helpers ----------------------------------------------------------------

type stubSource struct{}

func (stubSource) Fetch(context.Context) (price.Quote, error) {
	return price.NewQuote(
		decimal.RequireFromString("3000"),
		decimal.RequireFromString("2.5"),
		decimal.RequireFromString("10"),
	), nil
}

// startServer runs h behind an httptest server. The hub's refresh loop uses a
// long interval so only subscribes produce events unless a test calls Refresh.
func startServer(t *testing.T, keepAlive time.Duration) (*httptest.Server, *hub.Hub, context.CancelFunc) {
	t.Helper()
	h := hub.New(stubSource{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(sse.New(h, 2*time.Second, keepAlive))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, h, cancel
}

type stream struct {
	resp *http.Response
	r    *bufio.Reader
}

func open(t *testing.T, url string) *stream {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return &stream{resp: resp, r: bufio.NewReader(resp.Body)}
}

// record reads lines up to the next blank line.
func (s *stream) record(t *testing.T) []string {
	t.Helper()
	type result struct {
		lines []string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		var lines []string
		for {
			line, err := s.r.ReadString('\n')
			if err != nil {
				ch <- result{lines, err}
				return
			}
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				ch <- result{lines, nil}
				return
			}
			lines = append(lines, line)
		}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read record: %v (partial %q)", res.err, res.lines)
		}
		return res.lines
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading SSE record")
		return nil
	}
}

// event reads one id/data record, skipping comments.
func (s *stream) event(t *testing.T) (id string, data map[string]interface{}) {
	t.Helper()
	for {
		lines := s.record(t)
		if len(lines) == 1 && strings.HasPrefix(lines[0], ":") {
			continue
		}
		if len(lines) != 2 || !strings.HasPrefix(lines[0], "id: ") || !strings.HasPrefix(lines[1], "data: ") {
			t.Fatalf("malformed record: %q", lines)
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &data); err != nil {
			t.Fatalf("data line is not JSON: %v", err)
		}
		return strings.TrimPrefix(lines[0], "id: "), data
	}
}

func waitCount(t *testing.T, h *hub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count: got %d, want %d", h.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestEvents_HeadersAndHandshake(t *testing.T) {
	srv, _, _ := startServer(t, 0)
	s := open(t, srv.URL)

	want := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}
	for k, v := range want {
		if got := s.resp.Header.Get(k); got != v {
			t.Errorf("header %s: got %q, want %q", k, got, v)
		}
	}

	if lines := s.record(t); len(lines) != 1 || lines[0] != ":ok" {
		t.Fatalf("first record: got %q, want [:ok]", lines)
	}

	id, data := s.event(t)
	if id != "1" {
		t.Errorf("id: got %s, want 1", id)
	}
	if data["type"] != "price_update" {
		t.Errorf("type: got %v, want price_update", data["type"])
	}
	if _, ok := data["data"].(map[string]interface{}); !ok {
		t.Errorf("data: missing or wrong type in %v", data)
	}
}

func TestEvents_NewClientTriggersBroadcastToExisting(t *testing.T) {
	srv, h, _ := startServer(t, 0)

	first := open(t, srv.URL)
	first.record(t) // :ok
	if id, _ := first.event(t); id != "1" {
		t.Fatalf("first client initial id: got %s, want 1", id)
	}
	waitCount(t, h, 1)

	second := open(t, srv.URL)
	second.record(t)
	if id, _ := second.event(t); id != "2" {
		t.Errorf("second client initial id: got %s, want 2", id)
	}
	if id, _ := first.event(t); id != "2" {
		t.Errorf("first client after second subscribed: got %s, want 2", id)
	}

	h.Refresh(context.Background())
	id1, d1 := first.event(t)
	id2, d2 := second.event(t)
	if id1 != "3" || id2 != "3" {
		t.Errorf("tick ids: got %s and %s, want 3", id1, id2)
	}
	if d1["timestamp"] != d2["timestamp"] {
		t.Errorf("payloads differ: %v vs %v", d1, d2)
	}
}

func TestEvents_DisconnectUnsubscribes(t *testing.T) {
	srv, h, _ := startServer(t, 0)

	s := open(t, srv.URL)
	s.record(t)
	s.event(t)
	waitCount(t, h, 1)

	s.resp.Body.Close()
	waitCount(t, h, 0)
}

func TestEvents_ShutdownEndsStream(t *testing.T) {
	srv, h, cancel := startServer(t, 0)

	s := open(t, srv.URL)
	s.record(t)
	s.event(t)
	waitCount(t, h, 1)

	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(s.r)
		done <- err
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after hub shutdown")
	}
	waitCount(t, h, 0)
}

func TestEvents_KeepAlivePing(t *testing.T) {
	srv, _, _ := startServer(t, 20*time.Millisecond)

	s := open(t, srv.URL)
	s.record(t) // :ok
	s.event(t)

	if lines := s.record(t); len(lines) != 1 || lines[0] != ":ping" {
		t.Errorf("keep-alive record: got %q, want [:ping]", lines)
	}
}

func TestEvents_MethodNotAllowed(t *testing.T) {
	h := hub.New(stubSource{}, time.Hour)
	rr := httptest.NewRecorder()
	sse.New(h, time.Second, 0).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/events", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
	if n := h.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}
