// Package metrics holds the Prometheus collectors for the proxy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the proxy.
// Pass to components that need to record metrics.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	RateLimited      prometheus.Counter
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	SweptEntries     *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		CacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weather_proxy",
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"}, // result=hit/miss
		),
		RateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "weather_proxy",
				Name:      "rate_limited_total",
				Help:      "Requests denied by the local rate limiter",
			},
		),
		UpstreamRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weather_proxy",
				Name:      "upstream_requests_total",
				Help:      "Upstream calls by classified outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "weather_proxy",
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		SweptEntries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weather_proxy",
				Name:      "swept_entries_total",
				Help:      "Expired in-memory entries removed by the sweeper",
			},
			[]string{"store"},
		),
	}
}

func (m *Metrics) CacheHit() {
	m.CacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) RateLimitDenied() {
	m.RateLimited.Inc()
}

// Upstream records one upstream call.
func (m *Metrics) Upstream(outcome string, d time.Duration) {
	m.UpstreamRequests.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Swept records entries removed from the named in-memory store.
func (m *Metrics) Swept(store string, n int) {
	if n > 0 {
		m.SweptEntries.WithLabelValues(store).Add(float64(n))
	}
}
