package prometheus

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is implemented by [goSession.Authority].
type MetricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	NotificationsDropped() uint64
}

type counterDesc struct {
	id   goSession.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goSession.MetricID
	desc *prometheus.Desc
}

// Collector is a [prometheus.Collector] that reads a fresh snapshot on every
// scrape. It holds no state of its own.
type Collector struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []histogramDesc
	dropped    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		dropped: prometheus.NewDesc(
			internaldefs.NotificationsDroppedName,
			"Notifications dropped due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.dropped
}

// Collect implements [prometheus.Collector]. Nothing is emitted while the
// source has metrics disabled.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return
	}

	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(snapshot.Counters[d.id]))
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// Sum is not tracked by the in-process histogram.
		ch <- prometheus.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.NotificationsDropped()))
}

// Exporter owns a private registry holding one [Collector].
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter registers a collector for authority on a fresh registry.
func NewExporter(authority *goSession.Authority) *Exporter {
	return NewExporterFromSource(authority)
}

// NewExporterFromSource is [NewExporter] for any [MetricsSource].
func NewExporterFromSource(source MetricsSource) *Exporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(source))
	return &Exporter{registry: registry}
}

// Registry exposes the underlying registry so callers can add their own collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
