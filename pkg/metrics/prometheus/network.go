package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type networkMetrics struct {
	framesTotal        *prometheus.CounterVec
	frameDuration      *prometheus.HistogramVec
	frameBytes         *prometheus.HistogramVec
	circuitState       *prometheus.GaugeVec
	activeConnections  *prometheus.GaugeVec
}

// NewNetworkMetrics returns a Prometheus-backed metrics.NetworkMetrics, or
// nil when metrics are disabled.
func NewNetworkMetrics() metrics.NetworkMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &networkMetrics{
		framesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_network_frames_total",
				Help: "Total number of frames sent by message type and status",
			},
			[]string{"message_type", "status"},
		),
		frameDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commy_network_frame_duration_milliseconds",
				Help:    "Round-trip duration of a frame exchange in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"message_type"},
		),
		frameBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commy_network_frame_bytes",
				Help:    "Distribution of frame payload sizes",
				Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144},
			},
			[]string{"message_type"},
		),
		circuitState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commy_network_circuit_state",
				Help: "Circuit breaker state per peer: 0=closed 1=half-open 2=open",
			},
			[]string{"peer"},
		),
		activeConnections: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commy_network_active_connections",
				Help: "Current pooled connection count per peer",
			},
			[]string{"peer"},
		),
	}
}

func (m *networkMetrics) ObserveFrame(messageType string, bytes int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.framesTotal.WithLabelValues(messageType, status).Inc()
	m.frameDuration.WithLabelValues(messageType).Observe(float64(duration.Microseconds()) / 1000)
	if bytes > 0 {
		m.frameBytes.WithLabelValues(messageType).Observe(float64(bytes))
	}
}

func (m *networkMetrics) RecordCircuitState(peer string, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.circuitState.WithLabelValues(peer).Set(v)
}

func (m *networkMetrics) RecordActiveConnections(peer string, delta int) {
	if m == nil {
		return
	}
	m.activeConnections.WithLabelValues(peer).Add(float64(delta))
}
