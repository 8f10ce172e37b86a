package ranking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricVotesTotal              = "ranking_votes_total"
	MetricScoreRecomputeTotal     = "ranking_recompute_total"
	MetricScoreRecomputeErrors    = "ranking_recompute_errors_total"
	MetricScoreRecomputeDuration  = "ranking_recompute_duration_seconds"
	MetricLastRecomputeTimestamp  = "ranking_last_recompute_timestamp"
	MetricLastRecomputePostCount  = "ranking_last_recompute_post_count"
	MetricScorePublishErrorsTotal = "ranking_score_publish_errors_total"
)

// Metrics contains Prometheus metrics for the ranking engine.
// All operations are thread-safe.
type Metrics struct {
	votesTotal              *prometheus.CounterVec
	recomputeTotal          prometheus.Counter
	recomputeErrors         prometheus.Counter
	recomputeDuration       prometheus.Histogram
	lastRecomputeTimestamp  prometheus.Gauge
	lastRecomputePostCount  prometheus.Gauge
	scorePublishErrorsTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		votesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVotesTotal,
			Help: "Total number of vote transitions, labeled by transition type",
		}, []string{"transition"}),
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricScoreRecomputeTotal,
			Help: "Total number of engagement score recompute cycles",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricScoreRecomputeErrors,
			Help: "Total number of engagement score recompute errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricScoreRecomputeDuration,
			Help:    "Histogram of engagement score recompute cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastRecomputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastRecomputeTimestamp,
			Help: "Unix timestamp of the last engagement score recompute cycle",
		}),
		lastRecomputePostCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastRecomputePostCount,
			Help: "Number of posts processed in the last recompute cycle",
		}),
		scorePublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricScorePublishErrorsTotal,
			Help: "Total number of failed score update publishes",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.votesTotal,
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputePostCount,
		m.scorePublishErrorsTotal,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncVoteTransition increments the vote counter for one transition type.
func (m *Metrics) IncVoteTransition(transition string) {
	m.votesTotal.WithLabelValues(transition).Inc()
}

// IncRecomputeTotal increments the recompute cycle counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records one recompute cycle duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// SetLastRecompute records the timestamp and post count of the last cycle.
func (m *Metrics) SetLastRecompute(at time.Time, postCount int) {
	m.lastRecomputeTimestamp.Set(float64(at.Unix()))
	m.lastRecomputePostCount.Set(float64(postCount))
}

// IncPublishErrors increments the publish errors counter.
func (m *Metrics) IncPublishErrors() {
	m.scorePublishErrorsTotal.Inc()
}
