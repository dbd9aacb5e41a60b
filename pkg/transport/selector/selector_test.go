package selector

import (
	"testing"
	"time"

	"github.com/commy-mesh/commy/pkg/mesh"
	"github.com/commy-mesh/commy/pkg/perfmon"
)

func TestSelect_LocalOnlyPreferenceChoosesSharedMemory(t *testing.T) {
	s := New(perfmon.New(perfmon.DefaultConfig(), nil), mesh.NewRegistry(), mesh.RoundRobin, true)
	d, err := s.Select(Request{Identifier: "alpha", Preference: LocalOnly, LocalEntryExists: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != SharedMemory {
		t.Fatalf("expected shared memory, got %s", d.Transport)
	}
}

func TestSelect_NetworkOnlyPreferenceChoosesNetwork(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, true)
	d, err := s.Select(Request{Identifier: "alpha", Preference: NetworkOnly, LocalEntryExists: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != Network || d.Endpoint.ID != "peer-1" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestSelect_EncryptionRequiredForcesNetwork(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, false)
	d, err := s.Select(Request{Identifier: "alpha", EncryptionRequired: true, LocalEntryExists: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != Network {
		t.Fatalf("expected network when local cannot guarantee encryption, got %s", d.Transport)
	}
}

func TestSelect_NoLocalEntryGoesToNetwork(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, true)
	d, err := s.Select(Request{Identifier: "alpha", LocalEntryExists: false})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != Network {
		t.Fatalf("expected network with no local entry, got %s", d.Transport)
	}
}

func TestSelect_WithinRequirementAndNoBetterRemoteChoosesSharedMemory(t *testing.T) {
	perf := perfmon.New(perfmon.DefaultConfig(), nil)
	key := perfmon.Key{Identifier: "alpha", Path: "alpha", Transport: string(SharedMemory)}
	perf.Record(key, perfmon.Sample{Latency: time.Millisecond, Bytes: 1, Success: true, Timestamp: time.Now()})

	s := New(perf, mesh.NewRegistry(), mesh.RoundRobin, true)
	d, err := s.Select(Request{Identifier: "alpha", LocalEntryExists: true, PerformanceRequirement: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != SharedMemory {
		t.Fatalf("expected shared memory, got %s", d.Transport)
	}
}

func TestSelect_StrictlyBetterRemoteOverridesSharedMemory(t *testing.T) {
	perf := perfmon.New(perfmon.DefaultConfig(), nil)
	key := perfmon.Key{Identifier: "alpha", Path: "alpha", Transport: string(SharedMemory)}
	perf.Record(key, perfmon.Sample{Latency: 50 * time.Millisecond, Bytes: 1, Success: true, Timestamp: time.Now()})

	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy, ObservedLatency: time.Millisecond})
	reg.Advertise("alpha", "peer-1")

	s := New(perf, reg, mesh.RoundRobin, true)
	d, err := s.Select(Request{Identifier: "alpha", LocalEntryExists: true, PerformanceRequirement: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Transport != Network || d.Endpoint.ID != "peer-1" {
		t.Fatalf("expected to route to the faster remote peer, got %+v", d)
	}
}

func TestFallback_FromSharedMemoryGoesToNetwork(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, true)
	failed := RoutingDecision{Transport: SharedMemory}
	d, err := s.Fallback(Request{Identifier: "alpha"}, failed, map[string]bool{})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if d.Transport != Network || d.Endpoint.ID != "peer-1" {
		t.Fatalf("unexpected fallback: %+v", d)
	}
}

func TestFallback_FromNetworkTriesDifferentEndpoint(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-2", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")
	reg.Advertise("alpha", "peer-2")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, true)
	failed := RoutingDecision{Transport: Network, Endpoint: &mesh.Endpoint{ID: "peer-1"}}
	d, err := s.Fallback(Request{Identifier: "alpha"}, failed, map[string]bool{})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if d.Endpoint.ID != "peer-2" {
		t.Fatalf("expected fallback to the other endpoint, got %s", d.Endpoint.ID)
	}
}

func TestFallback_ExhaustedWhenNoCandidatesRemain(t *testing.T) {
	reg := mesh.NewRegistry()
	reg.RegisterEndpoint(mesh.Endpoint{ID: "peer-1", Health: mesh.HealthHealthy})
	reg.Advertise("alpha", "peer-1")

	s := New(perfmon.New(perfmon.DefaultConfig(), nil), reg, mesh.RoundRobin, true)
	failed := RoutingDecision{Transport: Network, Endpoint: &mesh.Endpoint{ID: "peer-1"}}
	_, err := s.Fallback(Request{Identifier: "alpha"}, failed, map[string]bool{})
	if err != ErrFallbackExhausted {
		t.Fatalf("expected ErrFallbackExhausted, got %v", err)
	}
}
