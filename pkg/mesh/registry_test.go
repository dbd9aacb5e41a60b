package mesh

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, endpoints ...Endpoint) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, ep := range endpoints {
		r.RegisterEndpoint(ep)
		if err := r.Advertise("alpha", ep.ID); err != nil {
			t.Fatalf("advertise: %v", err)
		}
	}
	return r
}

func TestLocate_ReturnsAdvertisedEndpoints(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "a", Health: HealthHealthy},
		Endpoint{ID: "b", Health: HealthHealthy},
	)
	got := r.Locate("alpha")
	if len(got) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(got))
	}
}

func TestLocate_UnknownIdentifierIsEmpty(t *testing.T) {
	r := NewRegistry()
	if got := r.Locate("missing"); len(got) != 0 {
		t.Fatalf("expected no endpoints, got %d", len(got))
	}
}

func TestHealthOf_UnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.HealthOf("ghost"); ok {
		t.Fatal("expected ok=false for unregistered endpoint")
	}
}

func TestHeartbeat_UpdatesHealth(t *testing.T) {
	r := newTestRegistry(t, Endpoint{ID: "a", Health: HealthUnknown})
	if err := r.Heartbeat("a", HealthHealthy, time.Millisecond, time.Now()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	h, ok := r.HealthOf("a")
	if !ok || h != HealthHealthy {
		t.Fatalf("expected healthy, got %v ok=%v", h, ok)
	}
}

func TestSelect_NoCandidates(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Select("nothing", RoundRobin); err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestSelect_RoundRobinCyclesThroughAll(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "a", Health: HealthHealthy},
		Endpoint{ID: "b", Health: HealthHealthy},
	)
	seen := make(map[string]int)
	for i := 0; i < 4; i++ {
		ep, err := r.Select("alpha", RoundRobin)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		seen[ep.ID]++
	}
	if seen["a"] != 2 || seen["b"] != 2 {
		t.Fatalf("expected even round-robin split, got %v", seen)
	}
}

func TestSelect_LeastConnectionsPicksSmallest(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "busy", Health: HealthHealthy, ActiveConns: 10},
		Endpoint{ID: "idle", Health: HealthHealthy, ActiveConns: 1},
	)
	ep, err := r.Select("alpha", LeastConnections)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if ep.ID != "idle" {
		t.Fatalf("expected idle endpoint, got %s", ep.ID)
	}
}

func TestSelect_PerformanceBasedPicksLowestLatency(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "slow", Health: HealthHealthy, ObservedLatency: 50 * time.Millisecond},
		Endpoint{ID: "fast", Health: HealthHealthy, ObservedLatency: time.Millisecond},
	)
	ep, err := r.Select("alpha", PerformanceBased)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if ep.ID != "fast" {
		t.Fatalf("expected fast endpoint, got %s", ep.ID)
	}
}

func TestSelect_FiltersToHealthyWhenAvailable(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "down", Health: HealthUnhealthy},
		Endpoint{ID: "up", Health: HealthHealthy},
	)
	for i := 0; i < 5; i++ {
		ep, err := r.Select("alpha", RoundRobin)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if ep.ID != "up" {
			t.Fatalf("expected only healthy endpoint chosen, got %s", ep.ID)
		}
	}
}

func TestSelect_FallsBackToAllWhenNoneHealthy(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "a", Health: HealthUnhealthy},
		Endpoint{ID: "b", Health: HealthDegraded},
	)
	if _, err := r.Select("alpha", RoundRobin); err != nil {
		t.Fatalf("expected a candidate despite no healthy endpoints, got err: %v", err)
	}
}

func TestSelect_ConsistentHashIsStableAcrossCalls(t *testing.T) {
	r := newTestRegistry(t,
		Endpoint{ID: "a", Health: HealthHealthy},
		Endpoint{ID: "b", Health: HealthHealthy},
		Endpoint{ID: "c", Health: HealthHealthy},
	)
	first, err := r.Select("alpha", ConsistentHash)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 5; i++ {
		ep, err := r.Select("alpha", ConsistentHash)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if ep.ID != first.ID {
			t.Fatalf("expected consistent hash to be stable, got %s then %s", first.ID, ep.ID)
		}
	}
}

func TestWithdraw_RemovesFromLocate(t *testing.T) {
	r := newTestRegistry(t, Endpoint{ID: "a", Health: HealthHealthy})
	r.Withdraw("alpha", "a")
	if got := r.Locate("alpha"); len(got) != 0 {
		t.Fatalf("expected no endpoints after withdraw, got %d", len(got))
	}
}

func TestSetActiveConns_UnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	if err := r.SetActiveConns("ghost", 1); err != ErrUnknownEndpoint {
		t.Fatalf("expected ErrUnknownEndpoint, got %v", err)
	}
}
