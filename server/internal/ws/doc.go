// Package ws serves the hub over WebSocket at GET /ws/stream.
//
// It is an alternative transport for clients that cannot use EventSource. The
// connection is registered with the same hub as SSE streams, so it receives
// the same envelopes with the same ids.
//
// Message format sent to clients:
//
//	{
//	  "id":    42,
//	  "event": { /* same JSON body as the SSE data line */ }
//	}
//
// The upgrader accepts all origins, matching the SSE endpoint's
// Access-Control-Allow-Origin: *.
package ws
