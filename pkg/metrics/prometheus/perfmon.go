package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type perfMonMetrics struct {
	percentiles  *prometheus.GaugeVec
	throughput   *prometheus.GaugeVec
	alertsTotal  *prometheus.CounterVec
}

// NewPerfMonMetrics returns a Prometheus-backed metrics.PerfMonMetrics, or
// nil when metrics are disabled.
func NewPerfMonMetrics() metrics.PerfMonMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &perfMonMetrics{
		percentiles: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commy_perfmon_latency_milliseconds",
				Help: "Derived latency percentile per identifier/path/transport",
			},
			[]string{"identifier", "path", "transport", "percentile"},
		),
		throughput: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commy_perfmon_throughput_bytes_per_second",
				Help: "Derived throughput per identifier/path/transport",
			},
			[]string{"identifier", "path", "transport"},
		),
		alertsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_perfmon_alerts_total",
				Help: "Total number of threshold-violation alerts raised",
			},
			[]string{"identifier", "path"},
		),
	}
}

func (m *perfMonMetrics) RecordPercentiles(identifier, path, transport string, p50, p95, p99 time.Duration) {
	if m == nil {
		return
	}
	m.percentiles.WithLabelValues(identifier, path, transport, "p50").Set(float64(p50.Microseconds()) / 1000)
	m.percentiles.WithLabelValues(identifier, path, transport, "p95").Set(float64(p95.Microseconds()) / 1000)
	m.percentiles.WithLabelValues(identifier, path, transport, "p99").Set(float64(p99.Microseconds()) / 1000)
}

func (m *perfMonMetrics) RecordThroughput(identifier, path, transport string, bytesPerSecond float64) {
	if m == nil {
		return
	}
	m.throughput.WithLabelValues(identifier, path, transport).Set(bytesPerSecond)
}

func (m *perfMonMetrics) ObserveAlert(identifier, path string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(identifier, path).Inc()
}
