// Package api implements the HTTP JSON API for pricestream-server.
//
// New(stats) returns an http.Handler that serves:
//
//	GET /api/v1/health  — hub state, subscriber count, dispatch counters
//	GET /api/v1/latest  — the most recently dispatched envelope; 404 before the first
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
