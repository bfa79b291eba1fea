// Package interceptor holds the unary server interceptors of the gRPC API.
package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/regform/internal/logger"
)

// UnaryLoggingInterceptor logs each listed unary gRPC call with its duration
// and resulting status code. Calls to other methods pass through silently.
func UnaryLoggingInterceptor(loggedMethods []string) grpc.UnaryServerInterceptor {
	logged := make(map[string]struct{}, len(loggedMethods))
	for _, m := range loggedMethods {
		logged[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		if _, ok := logged[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		start := time.Now()

		resp, err = handler(ctx, req)

		st, _ := status.FromError(err)

		logger.Log.Infoln(
			"gRPC request",
			"method", info.FullMethod,
			"duration", time.Since(start),
			"code", st.Code().String(),
		)

		return resp, err
	}
}
