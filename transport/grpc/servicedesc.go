package grpctransport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// serviceName is PlannerControlService's fully-qualified gRPC name. There is
// no .proto file behind it: structpb.Struct is already a generated protobuf
// message, so the service is wired directly against grpc.ServiceDesc the
// same way the teacher hand-wires a ServiceDesc around goa-generated
// transport code, minus the codegen step — the well-known types need none.
const serviceName = "htn.plannercontrol.v1.PlannerControlService"

// RegisterPlannerControlServiceServer registers srv against s, the same
// shape a generated *_grpc.pb.go's RegisterXxxServer helper has.
func RegisterPlannerControlServiceServer(s grpc.ServiceRegistrar, srv PlannerControlServer) {
	s.RegisterService(&plannerControlServiceDesc, srv)
}

var plannerControlServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PlannerControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreatePlan", Handler: _PlannerControlService_CreatePlan_Handler},
		{MethodName: "RegisterDomain", Handler: _PlannerControlService_RegisterDomain_Handler},
		{MethodName: "ListDomainTasks", Handler: _PlannerControlService_ListDomainTasks_Handler},
		{MethodName: "FetchExecutionState", Handler: _PlannerControlService_FetchExecutionState_Handler},
		{MethodName: "ApplyExecutionUpdate", Handler: _PlannerControlService_ApplyExecutionUpdate_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport/grpc/plannercontrol.go",
}

func _PlannerControlService_CreatePlan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerControlServer).CreatePlan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CreatePlan"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerControlServer).CreatePlan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _PlannerControlService_RegisterDomain_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerControlServer).RegisterDomain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RegisterDomain"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerControlServer).RegisterDomain(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _PlannerControlService_ListDomainTasks_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerControlServer).ListDomainTasks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListDomainTasks"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerControlServer).ListDomainTasks(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _PlannerControlService_FetchExecutionState_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerControlServer).FetchExecutionState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FetchExecutionState"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerControlServer).FetchExecutionState(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _PlannerControlService_ApplyExecutionUpdate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerControlServer).ApplyExecutionUpdate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ApplyExecutionUpdate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerControlServer).ApplyExecutionUpdate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PlannerControlServiceClient is the hand-wired client stub counterpart of
// PlannerControlServer, the shape a generated *_grpc.pb.go client interface
// has.
type PlannerControlServiceClient interface {
	CreatePlan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RegisterDomain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListDomainTasks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	FetchExecutionState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ApplyExecutionUpdate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type plannerControlServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerControlServiceClient wraps cc as a PlannerControlServiceClient.
func NewPlannerControlServiceClient(cc grpc.ClientConnInterface) PlannerControlServiceClient {
	return &plannerControlServiceClient{cc: cc}
}

func (c *plannerControlServiceClient) CreatePlan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CreatePlan", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *plannerControlServiceClient) RegisterDomain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RegisterDomain", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *plannerControlServiceClient) ListDomainTasks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListDomainTasks", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *plannerControlServiceClient) FetchExecutionState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/FetchExecutionState", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *plannerControlServiceClient) ApplyExecutionUpdate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ApplyExecutionUpdate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
