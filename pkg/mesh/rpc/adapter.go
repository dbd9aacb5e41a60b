package rpc

import (
	"context"
	"time"

	"github.com/commy-mesh/commy/pkg/mesh"
)

// CoordinatorService adapts a local *mesh.Registry to the CoordinatorServer
// grpc interface, letting peer nodes query it over the wire.
type CoordinatorService struct {
	Registry *mesh.Registry
}

var _ CoordinatorServer = (*CoordinatorService)(nil)

func (s *CoordinatorService) Locate(_ context.Context, req *LocateRequest) (*LocateResponse, error) {
	eps := s.Registry.Locate(req.Identifier)
	out := make([]EndpointMsg, len(eps))
	for i, ep := range eps {
		out[i] = toMsg(ep)
	}
	return &LocateResponse{Endpoints: out}, nil
}

func (s *CoordinatorService) Select(_ context.Context, req *SelectRequest) (*SelectResponse, error) {
	ep, err := s.Registry.Select(req.Identifier, mesh.Policy(req.Policy))
	if err == mesh.ErrNoCandidates {
		return &SelectResponse{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SelectResponse{Endpoint: toMsg(ep), Found: true}, nil
}

func (s *CoordinatorService) HealthOf(_ context.Context, req *HealthOfRequest) (*HealthOfResponse, error) {
	h, ok := s.Registry.HealthOf(req.EndpointID)
	if !ok {
		return &HealthOfResponse{Found: false}, nil
	}
	return &HealthOfResponse{Health: h.String(), Found: true}, nil
}

func toMsg(ep mesh.Endpoint) EndpointMsg {
	return EndpointMsg{
		ID:                ep.ID,
		Address:           ep.Address,
		Weight:            ep.Weight,
		Health:            ep.Health.String(),
		ActiveConns:       ep.ActiveConns,
		ObservedLatencyMs: ep.ObservedLatency.Milliseconds(),
	}
}

// FromMsg converts a wire endpoint back into a mesh.Endpoint, used by a
// caller that wants to merge a peer's locate/select response into its own
// view (e.g. the transport selector evaluating a remote candidate).
func FromMsg(m EndpointMsg) mesh.Endpoint {
	return mesh.Endpoint{
		ID:              m.ID,
		Address:         m.Address,
		Weight:          m.Weight,
		Health:          mesh.ParseHealth(m.Health),
		ActiveConns:     m.ActiveConns,
		ObservedLatency: time.Duration(m.ObservedLatencyMs) * time.Millisecond,
	}
}
