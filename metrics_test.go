package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLatencyBucketBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, len(LatencyBuckets)},
		{3 * time.Second, len(LatencyBuckets)},
	}
	for _, tc := range cases {
		if got := latencyBucket(tc.d); got != tc.want {
			t.Errorf("latencyBucket(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestResolveLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, d := range []time.Duration{time.Millisecond, 3 * time.Millisecond, 40 * time.Millisecond, time.Second} {
		m.Observe(MetricResolveLatency, d)
	}
	// Only resolve latency carries a histogram.
	m.Observe(MetricLogout, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Histograms) != 1 {
		t.Fatalf("expected a single histogram, got %d", len(snap.Histograms))
	}
	got := snap.Histograms[MetricResolveLatency]
	want := []uint64{2, 0, 0, 1, 0, 0, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d: want %d got %d (all %v)", i, want[i], got[i], got)
		}
	}
}

func TestHistogramOffKeepsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricResolveLatency, time.Millisecond)
	m.Inc(MetricCSRFRejected)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricResolveLatency]; ok {
		t.Fatal("histogram present while latency histograms are off")
	}
	if snap.Counters[MetricCSRFRejected] != 1 {
		t.Fatalf("csrf rejections: want 1 got %d", snap.Counters[MetricCSRFRejected])
	}
}

func TestDisabledAndNilMetricsRecordNothing(t *testing.T) {
	off := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	off.Inc(MetricLogout)
	off.Observe(MetricResolveLatency, time.Millisecond)
	if off.Value(MetricLogout) != 0 || off.LatencyEnabled() {
		t.Fatal("disabled metrics recorded a value")
	}
	if snap := off.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	nilMetrics.Observe(MetricResolveLatency, time.Millisecond)
	if nilMetrics.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics returned a value")
	}
	// Out-of-range ids are ignored.
	on := NewMetrics(MetricsConfig{Enabled: true})
	on.Inc(metricIDCount)
	if on.Value(metricIDCount) != 0 {
		t.Fatal("out-of-range id recorded")
	}
}

func TestCSRFRejectionsConcurrent(t *testing.T) {
	f := newEngineTest(t, nil)

	const workers = 16
	const each = 500
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				f.engine.RecordCSRFRejection()
			}
		}()
	}
	wg.Wait()

	if got := f.engine.MetricsSnapshot().Counters[MetricCSRFRejected]; got != workers*each {
		t.Fatalf("csrf rejections: want %d got %d", workers*each, got)
	}
}

func TestLogoutCounters(t *testing.T) {
	f := newEngineTest(t, nil)
	ctx := context.Background()
	id := f.register(t, "bob", "b@x.com", "pw12345678")
	pair := f.login(t, "bob", "pw12345678")

	if err := f.engine.Logout(ctx, id, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Repeated logout still counts.
	if err := f.engine.Logout(ctx, id, pair.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := f.engine.LogoutAll(ctx, id); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricLogout] != 2 || snap.Counters[MetricLogoutAll] != 1 {
		t.Fatalf("logout=%d logout_all=%d", snap.Counters[MetricLogout], snap.Counters[MetricLogoutAll])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success: want 1 got %d", snap.Counters[MetricLoginSuccess])
	}
}

func TestResolveRecordsLatencyWithoutStoreCalls(t *testing.T) {
	f := newEngineTest(t, func(c *Config) {
		c.Metrics.EnableLatencyHistograms = true
	})
	f.register(t, "alice", "a@x.com", "pw12345678")
	pair := f.login(t, "alice", "pw12345678")

	before := f.mr.CommandCount()
	if _, err := f.engine.ResolveFromAccessToken(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if after := f.mr.CommandCount(); after != before {
		t.Fatalf("expected resolve to avoid redis, got %d commands", after-before)
	}

	var total uint64
	for _, v := range f.engine.MetricsSnapshot().Histograms[MetricResolveLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
