package liveness

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for the verdicts counter.
const (
	OutcomeOnline   = "online"
	OutcomeOffline  = "offline"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics counts verdicts by outcome.
type Metrics struct {
	verdicts *prometheus.CounterVec
}

// NewMetrics creates the liveness collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "devicepulse",
				Name:      "ping_verdicts_total",
				Help:      "Liveness verdicts produced, by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.verdicts)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(outcome).Inc()
}
