package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "regform.RegistrationService"

// Full method names, as seen by interceptors.
const (
	RegisterFullMethod  = "/" + ServiceName + "/Register"
	ListUsersFullMethod = "/" + ServiceName + "/ListUsers"
)

// RegistrationServiceServer is the server API of regform.RegistrationService.
// Payloads are google.protobuf.Struct values shaped like the HTTP JSON bodies.
type RegistrationServiceServer interface {
	Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListUsers(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

func registerHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistrationServiceServer).Register(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RegisterFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistrationServiceServer).Register(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func listUsersHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistrationServiceServer).ListUsers(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ListUsersFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistrationServiceServer).ListUsers(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// RegistrationServiceDesc describes regform.RegistrationService for grpc.Server.RegisterService.
var RegistrationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    registerHandler,
		},
		{
			MethodName: "ListUsers",
			Handler:    listUsersHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "regform.proto",
}

// RegistrationClient calls regform.RegistrationService.
type RegistrationClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistrationClient returns a client bound to cc.
func NewRegistrationClient(cc grpc.ClientConnInterface) *RegistrationClient {
	return &RegistrationClient{cc: cc}
}

// Register submits a registration payload.
func (c *RegistrationClient) Register(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RegisterFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers fetches the registered accounts.
func (c *RegistrationClient) ListUsers(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListUsersFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
