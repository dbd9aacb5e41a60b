package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/commy-mesh/commy/pkg/metrics"
)

type storeMetrics struct {
	auditAppendTotal      *prometheus.CounterVec
	auditAppendDuration   prometheus.Histogram
	sqlMirrorTotal        *prometheus.CounterVec
	sqlMirrorDuration     *prometheus.HistogramVec
	archiveBytesTotal     prometheus.Counter
	archiveUploadTotal    *prometheus.CounterVec
	archiveUploadDuration prometheus.Histogram
}

// NewStoreMetrics returns a Prometheus-backed metrics.StoreMetrics, or nil
// when metrics are disabled.
func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &storeMetrics{
		auditAppendTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_store_audit_append_total",
				Help: "Total number of audit journal appends by status",
			},
			[]string{"status"},
		),
		auditAppendDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commy_store_audit_append_duration_milliseconds",
				Help:    "Duration of an audit journal append in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50},
			},
		),
		sqlMirrorTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_store_sql_mirror_total",
				Help: "Total number of SQL mirror operations by operation and status",
			},
			[]string{"op", "status"},
		),
		sqlMirrorDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commy_store_sql_mirror_duration_milliseconds",
				Help:    "Duration of a SQL mirror operation in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500},
			},
			[]string{"op"},
		),
		archiveBytesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "commy_store_archive_bytes_total",
				Help: "Total bytes uploaded to cold archival storage",
			},
		),
		archiveUploadTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "commy_store_archive_upload_total",
				Help: "Total number of archive uploads by status",
			},
			[]string{"status"},
		),
		archiveUploadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "commy_store_archive_upload_duration_milliseconds",
				Help:    "Duration of an archive upload in milliseconds",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
			},
		),
	}
}

func (m *storeMetrics) ObserveAuditAppend(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.auditAppendTotal.WithLabelValues(status).Inc()
	m.auditAppendDuration.Observe(float64(duration.Microseconds()) / 1000)
}

func (m *storeMetrics) ObserveSQLMirror(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sqlMirrorTotal.WithLabelValues(op, status).Inc()
	m.sqlMirrorDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *storeMetrics) ObserveArchiveUpload(bytes int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.archiveUploadTotal.WithLabelValues(status).Inc()
	if err == nil {
		m.archiveBytesTotal.Add(float64(bytes))
	}
	m.archiveUploadDuration.Observe(float64(duration.Microseconds()) / 1000)
}
