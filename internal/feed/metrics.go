package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedsBuiltTotal       = "feed_builds_total"
	MetricFeedBuildDuration     = "feed_build_duration_seconds"
	MetricFeedCandidatePoolSize = "feed_candidate_pool_size"
)

// Metrics contains Prometheus metrics for the feed pipeline.
// All operations are thread-safe.
type Metrics struct {
	feedsBuilt        prometheus.Counter
	buildDuration     prometheus.Histogram
	candidatePoolSize prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		feedsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeedsBuiltTotal,
			Help: "Total number of personalized feeds built",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedBuildDuration,
			Help:    "Histogram of feed pipeline build duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}),
		candidatePoolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedCandidatePoolSize,
			Help:    "Histogram of candidate pool sizes before scoring",
			Buckets: []float64{10, 50, 100, 200, 400, 800},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.feedsBuilt,
		m.buildDuration,
		m.candidatePoolSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncFeedsBuilt increments the feeds built counter.
func (m *Metrics) IncFeedsBuilt() {
	m.feedsBuilt.Inc()
}

// ObserveBuildDuration records one pipeline build duration sample.
func (m *Metrics) ObserveBuildDuration(seconds float64) {
	m.buildDuration.Observe(seconds)
}

// ObserveCandidatePoolSize records one candidate pool size sample.
func (m *Metrics) ObserveCandidatePoolSize(size float64) {
	m.candidatePoolSize.Observe(size)
}
