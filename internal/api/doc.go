// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl/trigger and /v1/digest/trigger for manual runs.
//   - GET /v1/news/search, /v1/news/id/{newsID}, and /v1/news/{ticker}
//     for stored articles.
//   - GET /v1/stats and /v1/stats/daily for corpus statistics.
package api
