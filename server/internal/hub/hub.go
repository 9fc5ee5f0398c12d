package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pricestream/pricestream/server/internal/event"
	"github.com/pricestream/pricestream/server/internal/price"
)

// sendQueueSize is the per-subscription outgoing frame buffer depth. A
// subscriber whose queue is full when a frame arrives is dropped.
const sendQueueSize = 16

// Conn is one subscriber's outbound channel. Send must return an error when
// the frame could not be delivered; the hub then drops the connection. Send is
// only ever called from the subscription's own writer goroutine.
type Conn interface {
	Send(f event.Frame) error
	Close() error
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id    string
	conn  Conn
	queue chan event.Frame
	done  chan struct{}
	once  sync.Once

	// writeMu is held across every Send; stopped is set under it once the
	// subscription leaves the registry.
	writeMu sync.Mutex
	stopped bool
}

// ID is a random identifier used in logs.
func (s *Subscription) ID() string { return s.id }

// Done is closed once the subscription has left the registry, whatever the
// reason: Unsubscribe, a failed or overflowing write, or hub shutdown.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) markClosed() {
	s.once.Do(func() { close(s.done) })
}

// stop marks the subscription closed and waits for an in-flight Send to
// finish. No Send starts after it returns.
func (s *Subscription) stop() {
	s.markClosed()
	s.writeMu.Lock()
	s.stopped = true
	s.writeMu.Unlock()
}

func (s *Subscription) deliver(f event.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stopped {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
	}
	return s.conn.Send(f)
}

// Stats is a point-in-time view of the hub counters.
type Stats struct {
	Subscribers    int
	LastID         uint64
	Dispatched     uint64
	FetchFailures  uint64
	WriteFailures  uint64
	LastDispatchAt time.Time
	LastEnvelope   *event.Envelope
}

// Hub manages subscriber connections and broadcasts a fresh price envelope to
// all of them every interval. The registry lock is held only while the
// registry is read or changed; frames reach each Conn through its own queue
// and writer goroutine, so a stalled client never delays the others.
type Hub struct {
	source   price.Source
	interval time.Duration
	now      func() time.Time // injectable for deterministic tests

	// refreshMu serializes fetch+dispatch so only one fetch is in flight.
	refreshMu sync.Mutex

	mu     sync.Mutex
	subs   []*Subscription // registration order
	seq    uint64
	stats  Stats
	closed bool
}

// New creates a Hub that fetches from src every interval.
func New(src price.Source, interval time.Duration) *Hub {
	return &Hub{
		source:   src,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the refresh loop. The ticker is started once and never reset;
// a failed fetch becomes an error envelope and the loop carries on. Run blocks
// until ctx is cancelled, then drains the registry.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if _, ok := h.refresh(ctx, true); !ok {
				slog.Debug("hub: tick not dispatched", "shutting_down", ctx.Err() != nil)
			}
		}
	}
}

// Subscribe registers conn and immediately refreshes, so every current
// subscriber, the new one included, receives fresh data without waiting for
// the next tick. After shutdown the returned Subscription is already done.
// The refresh is not tied to ctx's cancellation: a client that
// disconnects mid-fetch must not turn the shared update into an error.
func (h *Hub) Subscribe(ctx context.Context, conn Conn) *Subscription {
	sub := &Subscription{
		id:    uuid.NewString(),
		conn:  conn,
		queue: make(chan event.Frame, sendQueueSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.markClosed()
		_ = conn.Close()
		return sub
	}
	h.subs = append(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()

	go h.writeLoop(sub)
	slog.Info("hub: client subscribed", "sub", sub.id, "subscribers", n)

	h.Refresh(context.WithoutCancel(ctx))
	return sub
}

// Unsubscribe removes sub from the registry. It is a no-op if sub is already
// gone. When it returns, sub's Conn will not be written to again; if a Send is
// in flight, Unsubscribe waits for it.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	removed := h.removeLocked(sub)
	n := len(h.subs)
	h.mu.Unlock()

	sub.stop()
	if removed {
		slog.Info("hub: client unsubscribed", "sub", sub.id, "subscribers", n)
	}
}

// Refresh performs one fetch-and-broadcast cycle and returns the envelope it
// dispatched. The id counter advances even when nobody is subscribed.
func (h *Hub) Refresh(ctx context.Context) event.Envelope {
	env, _ := h.refresh(ctx, false)
	return env
}

// refresh fetches and dispatches under refreshMu. With dropCancelled set, a
// fetch that ends after ctx is cancelled is discarded and ok is false.
func (h *Hub) refresh(ctx context.Context, dropCancelled bool) (env event.Envelope, ok bool) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	q, err := h.source.Fetch(ctx)
	if dropCancelled && ctx.Err() != nil {
		return event.Envelope{}, false
	}
	if err != nil {
		slog.Warn("hub: price fetch failed", "err", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	env = event.FromFetch(h.seq+1, q, err, h.now())
	frame, encErr := event.Encode(env)
	if encErr != nil {
		slog.Error("hub: dropping unencodable envelope", "id", env.ID, "err", encErr)
		return env, false
	}

	h.seq = env.ID
	h.stats.Dispatched++
	h.stats.LastID = env.ID
	h.stats.LastDispatchAt = env.Timestamp
	h.stats.LastEnvelope = &env
	if err != nil {
		h.stats.FetchFailures++
	}
	h.enqueueLocked(frame)
	return env, true
}

// Broadcast queues env for every registered connection in registration order.
// It re-sends env as is: the id sequence and the dispatch stats are left to
// Refresh. Connections that cannot take the frame are removed; the error
// never reaches the caller.
func (h *Hub) Broadcast(env event.Envelope) {
	frame, err := event.Encode(env)
	if err != nil {
		slog.Error("hub: dropping unencodable envelope", "id", env.ID, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(frame)
}

// Count returns the number of currently registered subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Subscribers = len(h.subs)
	if s.LastEnvelope != nil {
		env := *s.LastEnvelope
		s.LastEnvelope = &env
	}
	return s
}

// --- internal ---------------------------------------------------------------

// enqueueLocked must be called with h.mu held. It never blocks: a
// subscription whose queue is full is removed and released in the background.
func (h *Hub) enqueueLocked(frame event.Frame) {
	kept := h.subs[:0]
	for _, sub := range h.subs {
		select {
		case sub.queue <- frame:
			kept = append(kept, sub)
		default:
			h.stats.WriteFailures++
			slog.Warn("hub: send queue full, dropping client", "sub", sub.id, "id", frame.ID)
			sub.markClosed()
			go release(sub)
		}
	}
	// Clear the tail so dropped subscriptions can be collected.
	for i := len(kept); i < len(h.subs); i++ {
		h.subs[i] = nil
	}
	h.subs = kept

	slog.Debug("hub: broadcast", "id", frame.ID, "subscribers", len(h.subs))
}

// writeLoop drains sub's queue into its Conn until the subscription is done.
// Runs in its own goroutine per subscription.
func (h *Hub) writeLoop(sub *Subscription) {
	for {
		select {
		case <-sub.done:
			return
		case f := <-sub.queue:
			if err := sub.deliver(f); err != nil {
				h.dropFailed(sub, f.ID, err)
				return
			}
		}
	}
}

func (h *Hub) dropFailed(sub *Subscription, id uint64, err error) {
	h.mu.Lock()
	if h.removeLocked(sub) {
		h.stats.WriteFailures++
		slog.Warn("hub: write failed, dropping client", "sub", sub.id, "id", id, "err", err)
	}
	h.mu.Unlock()
	release(sub)
}

// release stops sub and closes its Conn once no Send is in flight.
func release(sub *Subscription) {
	sub.stop()
	_ = sub.conn.Close()
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(sub *Subscription) bool {
	for i, s := range h.subs {
		if s == sub {
			copy(h.subs[i:], h.subs[i+1:])
			h.subs[len(h.subs)-1] = nil
			h.subs = h.subs[:len(h.subs)-1]
			return true
		}
	}
	return false
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.closed = true
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		sub.markClosed()
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			release(sub)
		}(sub)
	}
	wg.Wait()
	if len(subs) > 0 {
		slog.Info("hub: drained subscribers on shutdown", "count", len(subs))
	}
}
