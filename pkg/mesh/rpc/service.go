package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// CoordinatorServer is implemented by a mesh coordinator node to answer
// locate/select/health_of queries from peers.
type CoordinatorServer interface {
	Locate(ctx context.Context, req *LocateRequest) (*LocateResponse, error)
	Select(ctx context.Context, req *SelectRequest) (*SelectResponse, error)
	HealthOf(ctx context.Context, req *HealthOfRequest) (*HealthOfResponse, error)
}

// CoordinatorClient calls a remote mesh coordinator's queries.
type CoordinatorClient interface {
	Locate(ctx context.Context, req *LocateRequest, opts ...grpc.CallOption) (*LocateResponse, error)
	Select(ctx context.Context, req *SelectRequest, opts ...grpc.CallOption) (*SelectResponse, error)
	HealthOf(ctx context.Context, req *HealthOfRequest, opts ...grpc.CallOption) (*HealthOfResponse, error)
}

const serviceName = "commy.mesh.Coordinator"

// ServiceDesc describes the Coordinator service by hand, in place of a
// protoc-generated descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Locate", Handler: locateHandler},
		{MethodName: "Select", Handler: selectHandler},
		{MethodName: "HealthOf", Handler: healthOfHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/mesh/rpc/service.go",
}

// RegisterCoordinatorServer registers srv on s under the Coordinator
// service name.
func RegisterCoordinatorServer(s *grpc.Server, srv CoordinatorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func locateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LocateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Locate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Locate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Locate(ctx, req.(*LocateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func selectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SelectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Select"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Select(ctx, req.(*SelectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthOfHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthOfRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).HealthOf(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/HealthOf"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).HealthOf(ctx, req.(*HealthOfRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type coordinatorClient struct {
	cc *grpc.ClientConn
}

// NewCoordinatorClient wraps an established connection to a peer
// coordinator.
func NewCoordinatorClient(cc *grpc.ClientConn) CoordinatorClient {
	return &coordinatorClient{cc: cc}
}

func (c *coordinatorClient) Locate(ctx context.Context, req *LocateRequest, opts ...grpc.CallOption) (*LocateResponse, error) {
	out := new(LocateResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Locate", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Select(ctx context.Context, req *SelectRequest, opts ...grpc.CallOption) (*SelectResponse, error) {
	out := new(SelectResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Select", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) HealthOf(ctx context.Context, req *HealthOfRequest, opts ...grpc.CallOption) (*HealthOfResponse, error) {
	out := new(HealthOfResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/HealthOf", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
