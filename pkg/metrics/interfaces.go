package metrics

import "time"

// SharedFileMetrics observes C4 lifecycle events.
type SharedFileMetrics interface {
	ObserveRequest(policy string, duration time.Duration, err error)
	RecordRefCount(identifier string, count int64)
	ObserveGCSweep(retired int, duration time.Duration)
}

// AllocatorMetrics observes C5 allocation/release traffic.
type AllocatorMetrics interface {
	ObserveAllocate(reused bool, duration time.Duration)
	ObserveRelease(duration time.Duration)
	RecordFreeListSize(size int)
}

// NetworkMetrics observes C8 frame and connection traffic.
type NetworkMetrics interface {
	ObserveFrame(messageType string, bytes int, duration time.Duration, err error)
	RecordCircuitState(peer string, state string)
	RecordActiveConnections(peer string, delta int)
}

// RegistryMetrics observes C1 type registration traffic.
type RegistryMetrics interface {
	ObserveRegister(outcome string)
	RecordTypeCount(count int)
}

// PerfMonMetrics mirrors C9's derived percentiles onto Prometheus gauges,
// one per (identifier, path, transport) tuple.
type PerfMonMetrics interface {
	RecordPercentiles(identifier, path, transport string, p50, p95, p99 time.Duration)
	RecordThroughput(identifier, path, transport string, bytesPerSecond float64)
	ObserveAlert(identifier, path string)
}

// StoreMetrics observes the persistence layer: the badger audit journal,
// the optional SQL mirror, and optional S3 cold archival.
type StoreMetrics interface {
	ObserveAuditAppend(duration time.Duration, err error)
	ObserveSQLMirror(op string, duration time.Duration, err error)
	ObserveArchiveUpload(bytes int64, duration time.Duration, err error)
}
