package metrics

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/pricestream/pricestream/server/internal/hub"
)

// Metric names.
const (
	Subscribers    = "pricestream_subscribers"
	LastEventID    = "pricestream_last_event_id"
	Dispatched     = "pricestream_events_dispatched_total"
	FetchFailures  = "pricestream_fetch_failures_total"
	WriteFailures  = "pricestream_write_failures_total"
	LastDispatchTS = "pricestream_last_dispatch_timestamp_seconds"
)

// StatsSource is satisfied by *hub.Hub.
type StatsSource interface {
	Stats() hub.Stats
}

// Handler serves the current hub stats as a Prometheus text exposition.
func Handler(src StatsSource) http.Handler {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range Families(src.Stats()) {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

// Families converts a stats snapshot into metric families.
func Families(st hub.Stats) []*dto.MetricFamily {
	fams := []*dto.MetricFamily{
		gauge(Subscribers, "Number of currently registered subscribers.", float64(st.Subscribers)),
		gauge(LastEventID, "Id of the most recently dispatched envelope.", float64(st.LastID)),
		counter(Dispatched, "Envelopes dispatched since start.", float64(st.Dispatched)),
		counter(FetchFailures, "Upstream price fetches that failed.", float64(st.FetchFailures)),
		counter(WriteFailures, "Client writes that failed and dropped the client.", float64(st.WriteFailures)),
	}
	if !st.LastDispatchAt.IsZero() {
		fams = append(fams, gauge(LastDispatchTS, "Unix time of the last dispatch.",
			float64(st.LastDispatchAt.UnixMilli())/1e3))
	}
	return fams
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}
