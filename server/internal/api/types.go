package api

import "encoding/json"

// Hub states reported by /api/v1/health.
const (
	StateUnknown  = "unknown"  // nothing dispatched yet
	StateOK       = "ok"       // last envelope carried a quote
	StateDegraded = "degraded" // last envelope was an error
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State            string `json:"state"`
	Subscribers      int    `json:"subscribers"`
	LastEventID      uint64 `json:"last_event_id"`
	EventsDispatched uint64 `json:"events_dispatched"`
	FetchFailures    uint64 `json:"fetch_failures"`
	WriteFailures    uint64 `json:"write_failures"`
	LastDispatch     string `json:"last_dispatch,omitempty"` // RFC3339
	LastError        string `json:"last_error,omitempty"`
}

// LatestResponse is the payload for GET /api/v1/latest. Event has the same
// shape as the SSE data line.
type LatestResponse struct {
	ID    uint64          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
