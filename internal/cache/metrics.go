package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonExpired     = "expired"
	reasonInvalidated = "invalidated"
	reasonCleared     = "cleared"
	reasonSwept       = "swept"
)

// Metrics exports cache activity to Prometheus. A nil *Metrics is a no-op.
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec

	sizeFn atomic.Value // func() int
}

// NewMetrics registers the cache collectors on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that returned a live entry",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no live entry",
		}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed from the cache",
		}, []string{"reason"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Entries currently stored, including expired ones not yet evicted",
	}, func() float64 {
		if fn, ok := m.sizeFn.Load().(func() int); ok {
			return float64(fn())
		}
		return 0
	})

	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) evicted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) observeSize(fn func() int) {
	if m != nil && fn != nil {
		m.sizeFn.Store(fn)
	}
}
