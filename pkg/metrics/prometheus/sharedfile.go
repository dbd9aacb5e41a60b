package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type sharedFileMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	refCount         *prometheus.GaugeVec
	gcRetiredTotal   prometheus.Counter
	gcSweepDuration  prometheus.Histogram
}

// NewSharedFileMetrics returns a Prometheus-backed metrics.SharedFileMetrics,
// or nil when metrics are disabled.
func NewSharedFileMetrics() metrics.SharedFileMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &sharedFileMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_sharedfile_requests_total",
				Help: "Total number of request() calls by policy and status",
			},
			[]string{"policy", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commy_sharedfile_request_duration_milliseconds",
				Help:    "Duration of request() calls in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"policy"},
		),
		refCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commy_sharedfile_refcount",
				Help: "Current reference count per identifier",
			},
			[]string{"identifier"},
		),
		gcRetiredTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "commy_sharedfile_gc_retired_total",
				Help: "Total number of entries retired by background GC",
			},
		),
		gcSweepDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commy_sharedfile_gc_sweep_duration_milliseconds",
				Help:    "Duration of a GC sweep in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
			},
		),
	}
}

func (m *sharedFileMetrics) ObserveRequest(policy string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(policy, status).Inc()
	m.requestDuration.WithLabelValues(policy).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *sharedFileMetrics) RecordRefCount(identifier string, count int64) {
	if m == nil {
		return
	}
	m.refCount.WithLabelValues(identifier).Set(float64(count))
}

func (m *sharedFileMetrics) ObserveGCSweep(retired int, duration time.Duration) {
	if m == nil {
		return
	}
	m.gcRetiredTotal.Add(float64(retired))
	m.gcSweepDuration.Observe(float64(duration.Microseconds()) / 1000)
}
