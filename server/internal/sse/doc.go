// Package sse serves the hub over Server-Sent Events at GET /events.
//
// On connect the handler sets the streaming headers, writes an ":ok" comment,
// flushes, and subscribes the stream to the hub, which immediately pushes a
// fresh envelope. The handler then blocks until the client goes away or the hub
// drops the subscription (write failure or shutdown), and unsubscribes.
//
// Every write carries a deadline so a stalled client fails fast and is removed
// instead of pinning its hub writer. Idle streams get a ":ping" comment every
// keep-alive interval.
package sse
