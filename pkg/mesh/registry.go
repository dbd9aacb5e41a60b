package mesh

import (
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrUnknownEndpoint = errors.New("mesh: unknown endpoint")
	ErrNoCandidates    = errors.New("mesh: no candidate endpoints for service")
)

// Registry is the peer table: a named-resource map guarded by a single
// RWMutex, the same shape the registry's own registry.Registry uses for
// metadata stores, content stores and caches.
type Registry struct {
	mu sync.RWMutex

	endpoints map[string]*Endpoint          // by endpoint ID
	adverts   map[string]map[string]struct{} // identifier -> set of endpoint IDs serving it

	rrMu       sync.Mutex
	rrCounters map[string]*atomic.Uint64 // round-robin cursor per identifier
}

// NewRegistry builds an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{
		endpoints:  make(map[string]*Endpoint),
		adverts:    make(map[string]map[string]struct{}),
		rrCounters: make(map[string]*atomic.Uint64),
	}
}

// RegisterEndpoint adds or replaces an endpoint's static attributes.
func (r *Registry) RegisterEndpoint(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := ep
	r.endpoints[ep.ID] = &cp
}

// Heartbeat records the latest health and observed latency for an endpoint.
func (r *Registry) Heartbeat(endpointID string, health Health, latency time.Duration, observedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[endpointID]
	if !ok {
		return ErrUnknownEndpoint
	}
	ep.Health = health
	ep.ObservedLatency = latency
	ep.LastHeartbeat = observedAt
	return nil
}

// SetActiveConns updates the in-flight connection count used by the
// least_connections policy.
func (r *Registry) SetActiveConns(endpointID string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[endpointID]
	if !ok {
		return ErrUnknownEndpoint
	}
	ep.ActiveConns = n
	return nil
}

// Advertise records that endpointID serves identifier.
func (r *Registry) Advertise(identifier, endpointID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[endpointID]; !ok {
		return ErrUnknownEndpoint
	}
	set, ok := r.adverts[identifier]
	if !ok {
		set = make(map[string]struct{})
		r.adverts[identifier] = set
	}
	set[endpointID] = struct{}{}
	return nil
}

// Withdraw removes endpointID from identifier's advertised set.
func (r *Registry) Withdraw(identifier, endpointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.adverts[identifier]; ok {
		delete(set, endpointID)
		if len(set) == 0 {
			delete(r.adverts, identifier)
		}
	}
}

// Locate answers the locate(identifier) query: every endpoint currently
// advertising identifier, most recently observed state included.
func (r *Registry) Locate(identifier string) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.adverts[identifier]
	out := make([]Endpoint, 0, len(set))
	for id := range set {
		if ep, ok := r.endpoints[id]; ok {
			out = append(out, *ep)
		}
	}
	return out
}

// HealthOf answers the health_of(endpoint) query.
func (r *Registry) HealthOf(endpointID string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[endpointID]
	if !ok {
		return HealthUnknown, false
	}
	return ep.Health, true
}

// Select answers the select(service) query: apply policy over identifier's
// currently healthy candidates (falling back to the full candidate set if
// none are healthy) and return a single chosen endpoint.
func (r *Registry) Select(identifier string, policy Policy) (Endpoint, error) {
	candidates := r.Locate(identifier)
	if len(candidates) == 0 {
		return Endpoint{}, ErrNoCandidates
	}

	healthy := make([]Endpoint, 0, len(candidates))
	for _, ep := range candidates {
		if ep.Health == HealthHealthy {
			healthy = append(healthy, ep)
		}
	}
	if len(healthy) > 0 {
		candidates = healthy
	}

	switch policy {
	case LeastConnections:
		return leastConnections(candidates), nil
	case Weighted:
		return weightedRandom(candidates), nil
	case PerformanceBased:
		return bestPerformance(candidates), nil
	case Random:
		return candidates[rand.Intn(len(candidates))], nil
	case ConsistentHash:
		return consistentHash(candidates, identifier), nil
	case RoundRobin:
		fallthrough
	default:
		return r.roundRobin(identifier, candidates), nil
	}
}

func (r *Registry) roundRobin(identifier string, candidates []Endpoint) Endpoint {
	r.rrMu.Lock()
	ctr, ok := r.rrCounters[identifier]
	if !ok {
		ctr = &atomic.Uint64{}
		r.rrCounters[identifier] = ctr
	}
	r.rrMu.Unlock()

	idx := ctr.Add(1) - 1
	return candidates[idx%uint64(len(candidates))]
}

func leastConnections(candidates []Endpoint) Endpoint {
	best := candidates[0]
	for _, ep := range candidates[1:] {
		if ep.ActiveConns < best.ActiveConns {
			best = ep
		}
	}
	return best
}

func bestPerformance(candidates []Endpoint) Endpoint {
	best := candidates[0]
	for _, ep := range candidates[1:] {
		if ep.ObservedLatency < best.ObservedLatency {
			best = ep
		}
	}
	return best
}

func weightedRandom(candidates []Endpoint) Endpoint {
	total := 0
	for _, ep := range candidates {
		w := ep.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	pick := rand.Intn(total)
	for _, ep := range candidates {
		w := ep.Weight
		if w <= 0 {
			w = 1
		}
		if pick < w {
			return ep
		}
		pick -= w
	}
	return candidates[len(candidates)-1]
}

// consistentHash places each candidate on a small ring of virtual points
// and returns the endpoint whose nearest point succeeds hash(key), per the
// same xxhash ring placement used for shard selection elsewhere.
func consistentHash(candidates []Endpoint, key string) Endpoint {
	const vnodes = 8
	target := xxhash.Sum64String(key)

	var best Endpoint
	bestDist := uint64(1<<64 - 1)
	found := false

	for _, ep := range candidates {
		for v := 0; v < vnodes; v++ {
			h := xxhash.Sum64String(ep.ID + ":" + strconv.Itoa(v))
			dist := h - target
			if h < target {
				dist = (1<<64-1-target + 1) + h
			}
			if !found || dist < bestDist {
				best = ep
				bestDist = dist
				found = true
			}
		}
	}
	return best
}
