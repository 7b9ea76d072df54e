package goSession

import (
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricValidateSuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricValidateSuccess)
	}
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 3 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}

var hotValidateMetricIDs = [...]MetricID{
	MetricValidateSuccess,
	MetricValidateRevoked,
	MetricValidateInvalid,
	MetricProfileCacheHit,
	MetricProfileCacheMiss,
	MetricSessionCreated,
	MetricLoginSuccess,
	MetricLogout,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(hotValidateMetricIDs[idx])
			idx++
			if idx == len(hotValidateMetricIDs) {
				idx = 0
			}
		}
	})
}
