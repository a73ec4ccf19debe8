// Package metric provides Prometheus metrics for EventLink.
//
//   - prometheus.go: registry, counters and the /metrics handler
//   - collector.go: scrape-time collector for live link and table state
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
