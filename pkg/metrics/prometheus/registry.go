package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type registryMetrics struct {
	registerTotal *prometheus.CounterVec
	typeCount     prometheus.Gauge
}

// NewRegistryMetrics returns a Prometheus-backed metrics.RegistryMetrics, or
// nil when metrics are disabled.
func NewRegistryMetrics() metrics.RegistryMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &registryMetrics{
		registerTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_typeregistry_register_total",
				Help: "Total number of Register() calls by outcome",
			},
			[]string{"outcome"}, // "new", "idempotent", "conflict"
		),
		typeCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "commy_typeregistry_types",
				Help: "Current number of registered types",
			},
		),
	}
}

func (m *registryMetrics) ObserveRegister(outcome string) {
	if m == nil {
		return
	}
	m.registerTotal.WithLabelValues(outcome).Inc()
}

func (m *registryMetrics) RecordTypeCount(count int) {
	if m == nil {
		return
	}
	m.typeCount.Set(float64(count))
}
