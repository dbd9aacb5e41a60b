package rpc

// EndpointMsg is the wire representation of a mesh.Endpoint.
type EndpointMsg struct {
	ID                string
	Address           string
	Weight            int
	Health            string
	ActiveConns       int64
	ObservedLatencyMs int64
}

type LocateRequest struct {
	Identifier string
}

type LocateResponse struct {
	Endpoints []EndpointMsg
}

type SelectRequest struct {
	Identifier string
	Policy     string
}

type SelectResponse struct {
	Endpoint EndpointMsg
	Found    bool
}

type HealthOfRequest struct {
	EndpointID string
}

type HealthOfResponse struct {
	Health string
	Found  bool
}
