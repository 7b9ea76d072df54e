// Package otel publishes goSession counters as OpenTelemetry observable
// instruments.
//
// [NewExporter] creates one Int64ObservableCounter per counter and one
// Int64ObservableGauge per latency bucket, then registers a single callback
// that reads Authority.MetricsSnapshot on each collection. Callers own the
// MeterProvider.
package otel
