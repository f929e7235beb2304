// Package api hosts the operator HTTP surface served next to a running crawl.
// Notable routes:
//   - GET /healthz and /readyz for liveness and store reachability.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/ledger for checkpoint counts and the latest epoch summary.
package api
