// Package selector is C7: a pure decision function that classifies each
// file request to shared-memory or network transport, consulting C9's
// observed performance and C10's mesh registry.
package selector

import (
	"errors"
	"time"

	"github.com/commy-mesh/commy/pkg/mesh"
	"github.com/commy-mesh/commy/pkg/perfmon"
)

// Transport is the chosen delivery path.
type Transport string

const (
	SharedMemory Transport = "shared_memory"
	Network      Transport = "network"
)

// Preference mirrors the request's transport_preference field.
type Preference string

const (
	PreferenceNone Preference = ""
	LocalOnly      Preference = "local-only"
	NetworkOnly    Preference = "network-only"
)

var ErrFallbackExhausted = errors.New("selector: no remaining fallback candidates")

// Request carries everything the decision rules need.
type Request struct {
	Identifier             string
	Preference             Preference
	EncryptionRequired     bool
	PerformanceRequirement time.Duration // p99 budget; <= 0 means no requirement
	LocalEntryExists       bool
}

// RoutingDecision is the selector's output.
type RoutingDecision struct {
	Transport  Transport
	Endpoint   *mesh.Endpoint
	Confidence float64
	Reason     string
}

// Selector evaluates the ordered decision rules.
type Selector struct {
	perf                   *perfmon.Monitor
	registry               *mesh.Registry
	policy                 mesh.Policy
	localEncryptionCapable bool
}

// New builds a Selector. policy is the C10 load-balancing policy applied
// when a network endpoint must be chosen.
func New(perf *perfmon.Monitor, registry *mesh.Registry, policy mesh.Policy, localEncryptionCapable bool) *Selector {
	return &Selector{perf: perf, registry: registry, policy: policy, localEncryptionCapable: localEncryptionCapable}
}

// Select evaluates the five ordered rules, first match wins.
func (s *Selector) Select(req Request) (RoutingDecision, error) {
	if req.Preference == LocalOnly && req.LocalEntryExists {
		return RoutingDecision{Transport: SharedMemory, Confidence: 1, Reason: "local-only preference"}, nil
	}

	if req.Preference == NetworkOnly {
		return s.networkDecision(req, "network-only preference")
	}

	if req.EncryptionRequired && !s.localEncryptionCapable {
		return s.networkDecision(req, "encryption required, shared memory cannot guarantee encryption at rest")
	}

	if req.LocalEntryExists {
		key := perfmon.Key{Identifier: req.Identifier, Path: req.Identifier, Transport: string(SharedMemory)}
		p, ok := s.perf.Snapshot(key)
		withinRequirement := !ok || req.PerformanceRequirement <= 0 || p.P99 <= req.PerformanceRequirement
		if withinRequirement && !s.hasStrictlyBetterRemote(req.Identifier, p, ok) {
			return RoutingDecision{
				Transport:  SharedMemory,
				Confidence: confidenceFromGap(p.P99, req.PerformanceRequirement, ok),
				Reason:     "within performance requirement, no better remote alternative",
			}, nil
		}
	}

	return s.networkDecision(req, "selected via mesh load-balancing policy")
}

// Fallback advances the fallback chain after failed's chosen path fails at
// call time: shared memory falls back to network for the same identifier;
// network falls back to a different endpoint until candidates are
// exhausted.
func (s *Selector) Fallback(req Request, failed RoutingDecision, tried map[string]bool) (RoutingDecision, error) {
	if failed.Transport == SharedMemory {
		return s.networkDecision(req, "fallback from shared memory failure")
	}

	for _, ep := range s.registry.Locate(req.Identifier) {
		if failed.Endpoint != nil && ep.ID == failed.Endpoint.ID {
			continue
		}
		if tried[ep.ID] {
			continue
		}
		ep := ep
		return RoutingDecision{Transport: Network, Endpoint: &ep, Confidence: 0.5, Reason: "fallback to alternate endpoint"}, nil
	}
	return RoutingDecision{}, ErrFallbackExhausted
}

func (s *Selector) networkDecision(req Request, reason string) (RoutingDecision, error) {
	ep, err := s.registry.Select(req.Identifier, s.policy)
	if err != nil {
		return RoutingDecision{}, err
	}
	return RoutingDecision{
		Transport:  Network,
		Endpoint:   &ep,
		Confidence: confidenceFromGap(ep.ObservedLatency, req.PerformanceRequirement, true),
		Reason:     reason,
	}, nil
}

// hasStrictlyBetterRemote reports whether C10 knows of a healthy remote
// endpoint with strictly lower observed latency than the local path.
func (s *Selector) hasStrictlyBetterRemote(identifier string, local perfmon.Percentiles, haveLocal bool) bool {
	if !haveLocal {
		return false
	}
	for _, ep := range s.registry.Locate(identifier) {
		if ep.Health == mesh.HealthHealthy && ep.ObservedLatency > 0 && ep.ObservedLatency < local.P99 {
			return true
		}
	}
	return false
}

// confidenceFromGap maps the gap between observed p99 and the requirement
// to a 0..1 confidence score. With no requirement or no observation yet,
// confidence is a neutral 0.5.
func confidenceFromGap(observed, requirement time.Duration, haveObserved bool) float64 {
	if requirement <= 0 || !haveObserved {
		return 0.5
	}
	if observed <= 0 {
		return 1
	}
	gap := float64(requirement-observed) / float64(requirement)
	if gap < 0 {
		gap = 0
	}
	if gap > 1 {
		gap = 1
	}
	return gap
}
