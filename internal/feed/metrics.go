package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedPagesTotal       = "feed_pages_total"
	MetricFeedPageErrorsTotal  = "feed_page_errors_total"
	MetricFeedSponsoredDropped = "feed_sponsored_dropped_total"
	MetricFeedPageDuration     = "feed_page_duration_seconds"
)

// Metrics contains Prometheus metrics for feed page serving.
// All operations are thread-safe.
type Metrics struct {
	pagesTotal       prometheus.Counter
	pageErrorsTotal  prometheus.Counter
	sponsoredDropped prometheus.Counter
	pageDuration     prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all
// collectors initialized. The metrics are not registered; call Register to
// register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeedPagesTotal,
			Help: "Total number of feed pages served",
		}),
		pageErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeedPageErrorsTotal,
			Help: "Total number of feed page requests failed by the data source",
		}),
		sponsoredDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeedSponsoredDropped,
			Help: "Total number of sponsored candidates dropped by the density cap",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedPageDuration,
			Help:    "Histogram of feed page serving duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.pagesTotal,
		m.pageErrorsTotal,
		m.sponsoredDropped,
		m.pageDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncPages increments the served-pages counter.
func (m *Metrics) IncPages() {
	m.pagesTotal.Inc()
}

// IncPageErrors increments the failed-pages counter.
func (m *Metrics) IncPageErrors() {
	m.pageErrorsTotal.Inc()
}

// AddSponsoredDropped adds to the dropped-sponsored counter.
func (m *Metrics) AddSponsoredDropped(n int) {
	if n > 0 {
		m.sponsoredDropped.Add(float64(n))
	}
}

// ObservePageDuration records a page serving duration sample.
func (m *Metrics) ObservePageDuration(seconds float64) {
	m.pageDuration.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pagesTotal,
		m.pageErrorsTotal,
		m.sponsoredDropped,
		m.pageDuration,
	}
}
