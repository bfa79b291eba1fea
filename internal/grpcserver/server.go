// Package grpcserver exposes the registration service over gRPC as
// regform.RegistrationService, alongside the standard health service.
package grpcserver

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/patric-chuzhbe/regform/internal/grpcserver/interceptor"
)

func NewGRPCServer(
	addr string,
	handler RegistrationServiceServer,
) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor([]string{
				RegisterFullMethod,
				ListUsersFullMethod,
			}),
			interceptor.UnaryRecoveryInterceptor(),
		),
	)
	server.RegisterService(&RegistrationServiceDesc, handler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, lis, nil
}
