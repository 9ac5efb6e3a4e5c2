package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeStored   = "stored"
	outcomeCreated  = "created"
	outcomeReread   = "reread"
	outcomeFallback = "fallback"
)

// Metrics counts gate decisions. A nil *Metrics is a no-op.
type Metrics struct {
	resolutions *prometheus.CounterVec
	denials     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "role_resolutions_total",
			Help:      "Role resolutions by outcome",
		}, []string{"outcome"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "guard_denials_total",
			Help:      "Guard calls that stopped a protected operation",
		}, []string{"reason"}),
	}
}

func (m *Metrics) resolved(outcome string) {
	if m != nil {
		m.resolutions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) denied(reason DenialReason) {
	if m != nil {
		m.denials.WithLabelValues(string(reason)).Inc()
	}
}
