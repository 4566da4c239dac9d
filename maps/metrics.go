package maps

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricProviderCallsTotal       = "maps_provider_calls_total"
	MetricCredentialRotationsTotal = "maps_credential_rotations_total"
	MetricLookupsTotal             = "maps_lookups_total"
)

const (
	callStatusOK    = "ok"
	callStatusQuota = "quota_exceeded"
	callStatusError = "error"

	lookupHit      = "hit"
	lookupMiss     = "miss"
	lookupNoResult = "no_result"
)

// Metrics counts provider traffic and cache effectiveness. A nil *Metrics
// records nothing.
type Metrics struct {
	providerCalls *prometheus.CounterVec
	rotations     prometheus.Counter
	lookups       *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricProviderCallsTotal,
				Help: "Calls made to the mapping provider by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		rotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCredentialRotationsTotal,
				Help: "Number of times the provider API key was rotated",
			},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLookupsTotal,
				Help: "Memoized lookups by lookup name and cache result",
			},
			[]string{"lookup", "result"},
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
	return []prometheus.Collector{m.providerCalls, m.rotations, m.lookups}
}

func (m *Metrics) IncProviderCall(operation, status string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IncRotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

func (m *Metrics) IncLookup(lookup, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(lookup, result).Inc()
}
