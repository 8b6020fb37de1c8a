package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Recording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.RateLimitDenied()
	m.Upstream("success", 120*time.Millisecond)
	m.Upstream("timed_out", 10*time.Second)
	m.Swept("cache", 3)
	m.Swept("cache", 0)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("timed_out")); got != 1 {
		t.Errorf("timed out = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SweptEntries.WithLabelValues("cache")); got != 3 {
		t.Errorf("swept = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.UpstreamDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}
