// Package metrics exposes hub counters in the Prometheus text format at
// GET /metrics. Families are built directly as client_model protos and encoded
// with expfmt; there is no registry since every value is read from Hub.Stats
// at scrape time.
package metrics
