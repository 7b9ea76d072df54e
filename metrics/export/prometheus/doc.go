// Package prometheus exposes goSession counters through
// github.com/prometheus/client_golang.
//
// [Collector] converts each Authority.MetricsSnapshot into const metrics at
// scrape time: one gosession_*_total counter per MetricID and the
// gosession_validate_latency_seconds histogram. [Exporter] wraps the
// collector in a private registry and serves it over HTTP.
//
// Nothing is registered with the global default registry.
package prometheus
