// Package api hosts the optional status server that runs beside a collection
// or enrichment command. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the counters of the current enrichment run.
package api
