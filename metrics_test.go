package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	m.Add(MetricSweepRemoved, 10)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricValidateSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricValidateLatency, d)
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricProfileCacheHit)
	m.Inc(MetricProfileCacheMiss)
	m.Inc(MetricProfileCacheMiss)
	m.Add(MetricSweepRemoved, 7)

	snap := m.Snapshot()
	if snap.Counters[MetricProfileCacheHit] != 1 || snap.Counters[MetricProfileCacheMiss] != 2 {
		t.Fatalf("unexpected cache counters %+v", snap.Counters)
	}
	if snap.Counters[MetricSweepRemoved] != 7 {
		t.Fatalf("expected MetricSweepRemoved=7, got %d", snap.Counters[MetricSweepRemoved])
	}
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatal("latency histogram must not appear as a counter")
	}
	if _, ok := snap.Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram must be absent when latency histograms are disabled")
	}
}
