package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pricestream/pricestream/server/internal/hub"
)

// StatsSource is satisfied by *hub.Hub.
type StatsSource interface {
	Stats() hub.Stats
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	stats StatsSource
	mux   *http.ServeMux
}

// New creates a Handler reading from src and registers all routes.
func New(src StatsSource) http.Handler {
	h := &Handler{stats: src, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/latest", h.latest)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st := h.stats.Stats()
	resp := HealthResponse{
		State:            StateUnknown,
		Subscribers:      st.Subscribers,
		LastEventID:      st.LastID,
		EventsDispatched: st.Dispatched,
		FetchFailures:    st.FetchFailures,
		WriteFailures:    st.WriteFailures,
	}
	if env := st.LastEnvelope; env != nil {
		resp.State = StateOK
		if env.IsError() {
			resp.State = StateDegraded
			resp.LastError = env.Detail
		}
		resp.LastDispatch = st.LastDispatchAt.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

// latest returns GET /api/v1/latest.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	env := h.stats.Stats().LastEnvelope
	if env == nil {
		jsonErr(w, http.StatusNotFound, "no event dispatched yet")
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "encode event")
		return
	}
	jsonResp(w, http.StatusOK, LatestResponse{ID: env.ID, Event: body})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
