package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"house-finder/models"
)

// Metric names.
const (
	MetricListingsEvaluatedTotal = "evaluator_listings_evaluated_total"
	MetricObjectiveUnavailable   = "evaluator_objective_unavailable_total"
	MetricEvaluationDuration     = "evaluator_listing_duration_seconds"
)

const (
	outcomeAccepted  = "accepted"
	outcomeInvalid   = "invalid"
	outcomeViolating = "violating"
)

// Metrics tracks evaluation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	evaluated   *prometheus.CounterVec
	unavailable *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		evaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricListingsEvaluatedTotal,
				Help: "Listings evaluated by outcome",
			},
			[]string{"outcome"},
		),
		unavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricObjectiveUnavailable,
				Help: "Objective scores that could not be computed",
			},
			[]string{"objective"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricEvaluationDuration,
				Help:    "Time to evaluate one listing against all objectives",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.evaluated, m.unavailable, m.duration}
}

func (m *Metrics) IncUnavailable(objective string) {
	if m == nil {
		return
	}
	m.unavailable.WithLabelValues(objective).Inc()
}

func (m *Metrics) ObserveEvaluation(ev *models.EvaluatedListing, d time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeAccepted
	switch {
	case !ev.IsValid:
		outcome = outcomeInvalid
	case !ev.SatisfiesConstraints:
		outcome = outcomeViolating
	}
	m.evaluated.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
