package prometheus

import (
	"testing"
	"time"

	"github.com/commy-mesh/commy/pkg/metrics"
)

func TestAllocatorMetrics_NilWhenDisabledAndRecordsWhenEnabled(t *testing.T) {
	metrics.Disable()
	if m := NewAllocatorMetrics(); m != nil {
		t.Fatal("expected nil when disabled")
	}

	metrics.InitRegistry(nil)
	defer metrics.Disable()
	m := NewAllocatorMetrics()
	if m == nil {
		t.Fatal("expected non-nil when enabled")
	}
	m.ObserveAllocate(true, time.Microsecond)
	m.ObserveRelease(time.Microsecond)
	m.RecordFreeListSize(4)
}

func TestNetworkMetrics_NilWhenDisabledAndRecordsWhenEnabled(t *testing.T) {
	metrics.Disable()
	if m := NewNetworkMetrics(); m != nil {
		t.Fatal("expected nil when disabled")
	}

	metrics.InitRegistry(nil)
	defer metrics.Disable()
	m := NewNetworkMetrics()
	if m == nil {
		t.Fatal("expected non-nil when enabled")
	}
	m.ObserveFrame("Request", 128, time.Millisecond, nil)
	m.RecordCircuitState("peer-1", "open")
	m.RecordActiveConnections("peer-1", 1)
}

func TestRegistryMetrics_NilWhenDisabledAndRecordsWhenEnabled(t *testing.T) {
	metrics.Disable()
	if m := NewRegistryMetrics(); m != nil {
		t.Fatal("expected nil when disabled")
	}

	metrics.InitRegistry(nil)
	defer metrics.Disable()
	m := NewRegistryMetrics()
	if m == nil {
		t.Fatal("expected non-nil when enabled")
	}
	m.ObserveRegister("new")
	m.RecordTypeCount(7)
}

func TestPerfMonMetrics_NilWhenDisabledAndRecordsWhenEnabled(t *testing.T) {
	metrics.Disable()
	if m := NewPerfMonMetrics(); m != nil {
		t.Fatal("expected nil when disabled")
	}

	metrics.InitRegistry(nil)
	defer metrics.Disable()
	m := NewPerfMonMetrics()
	if m == nil {
		t.Fatal("expected non-nil when enabled")
	}
	m.RecordPercentiles("alpha", "/shm/alpha", "shared_memory", time.Millisecond, 2*time.Millisecond, 3*time.Millisecond)
	m.RecordThroughput("alpha", "/shm/alpha", "shared_memory", 1024)
	m.ObserveAlert("alpha", "/shm/alpha")
}
