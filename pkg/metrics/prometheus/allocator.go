package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type allocatorMetrics struct {
	allocateTotal    *prometheus.CounterVec
	allocateDuration prometheus.Histogram
	releaseDuration  prometheus.Histogram
	freeListSize     prometheus.Gauge
}

// NewAllocatorMetrics returns a Prometheus-backed metrics.AllocatorMetrics,
// or nil when metrics are disabled.
func NewAllocatorMetrics() metrics.AllocatorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &allocatorMetrics{
		allocateTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_idalloc_allocate_total",
				Help: "Total number of Allocate() calls by source",
			},
			[]string{"source"}, // "reused" or "counter"
		),
		allocateDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commy_idalloc_allocate_duration_milliseconds",
				Help:    "Duration of Allocate() calls in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50},
			},
		),
		releaseDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commy_idalloc_release_duration_milliseconds",
				Help:    "Duration of Release() calls in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50},
			},
		),
		freeListSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "commy_idalloc_free_list_size",
				Help: "Current number of released ids awaiting reuse",
			},
		),
	}
}

func (m *allocatorMetrics) ObserveAllocate(reused bool, duration time.Duration) {
	if m == nil {
		return
	}
	source := "counter"
	if reused {
		source = "reused"
	}
	m.allocateTotal.WithLabelValues(source).Inc()
	m.allocateDuration.Observe(float64(duration.Microseconds()) / 1000)
}

func (m *allocatorMetrics) ObserveRelease(duration time.Duration) {
	if m == nil {
		return
	}
	m.releaseDuration.Observe(float64(duration.Microseconds()) / 1000)
}

func (m *allocatorMetrics) RecordFreeListSize(size int) {
	if m == nil {
		return
	}
	m.freeListSize.Set(float64(size))
}
