// Package hub implements the broadcast hub for pricestream-server.
//
// Hub owns the registry of live subscriber connections and the refresh loop
// that feeds them. Every refresh fetches one quote from a price.Source, wraps
// the outcome (quote or failure) in an event.Envelope with the next id, and
// queues the serialized frame for all registered connections in registration
// order.
//
// New(src, interval) creates a Hub.
// Hub.Run(ctx) starts the refresh ticker; it blocks until ctx is cancelled,
// then drains the registry.
// Hub.Subscribe registers a Conn and triggers an immediate refresh so the new
// subscriber (and everyone else) gets current data at once.
// Hub.Unsubscribe removes a subscription; calling it twice is harmless.
//
// Each Subscription has a bounded queue drained by its own writer goroutine;
// the registry lock is never held across a Send. A Conn whose Send fails, or
// whose queue is full when a frame arrives, is removed and its
// Subscription.Done channel is closed. Once Unsubscribe returns no further Send
// reaches that Conn.
// Refreshes are serialized: at most one upstream fetch is in flight and ids
// follow dispatch order.
package hub
