package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// Metrics counts hits and misses per composite cache tier.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

// NewMetrics registers the cache tier counters against the default
// registry. Safe to call multiple times: every Composite shares the same
// process-wide counters, so a second call returns the existing instance
// instead of panicking on duplicate registration.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			hits: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "shortlinkd_cache_hits_total",
				Help: "Cache hits by tier.",
			}, []string{"tier"}),
			misses: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "shortlinkd_cache_misses_total",
				Help: "Cache misses by tier.",
			}, []string{"tier"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) hit(tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(tier).Inc()
}

func (m *Metrics) miss(tier string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(tier).Inc()
}
