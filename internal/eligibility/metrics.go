package eligibility

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricEligibilityScoredTotal = "eligibility_scored_total"
	MetricEligibilityCacheHits   = "eligibility_cache_hits_total"
	MetricEligibilityCacheMisses = "eligibility_cache_misses_total"
	MetricEligibilityCacheErrors = "eligibility_cache_errors_total"
)

// Metrics contains Prometheus metrics for eligibility scoring.
// All operations are thread-safe.
type Metrics struct {
	scoredTotal prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		scoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEligibilityScoredTotal,
			Help: "Total number of eligibility score computations",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEligibilityCacheHits,
			Help: "Total number of eligibility cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEligibilityCacheMisses,
			Help: "Total number of eligibility cache misses",
		}),
		cacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEligibilityCacheErrors,
			Help: "Total number of eligibility cache read/write errors",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all metric collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.scoredTotal,
		m.cacheHits,
		m.cacheMisses,
		m.cacheErrors,
	}
}

// IncScored increments the scored total counter.
func (m *Metrics) IncScored() {
	m.scoredTotal.Inc()
}

// IncCacheHits increments the cache hit counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHits.Inc()
}

// IncCacheMisses increments the cache miss counter.
func (m *Metrics) IncCacheMisses() {
	m.cacheMisses.Inc()
}

// IncCacheErrors increments the cache error counter.
func (m *Metrics) IncCacheErrors() {
	m.cacheErrors.Inc()
}
