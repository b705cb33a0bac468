// Package grpc provides the gRPC-side enforcement surface: unary server
// interceptors that run every incoming call through the decision engine.
package grpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

// InterceptorChain bundles the server interceptors in their canonical order.
type InterceptorChain struct {
	log    logger.Logger
	engine service.DecisionEngine
}

// NewInterceptorChain creates the chain.
func NewInterceptorChain(log logger.Logger, engine service.DecisionEngine) *InterceptorChain {
	return &InterceptorChain{
		log:    log.WithComponent("grpc_interceptors"),
		engine: engine,
	}
}

// UnaryRecoveryInterceptor converts handler panics into Internal errors.
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "grpc handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Errorf(grpcCodes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor logs one line per finished call.
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := grpcCodes.OK
		if err != nil {
			if st, ok := status.FromError(err); ok {
				code = st.Code()
			}
		}
		ic.log.Info(ctx, "grpc request completed",
			logger.String("method", info.FullMethod),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("status", code.String()),
		)
		return resp, err
	}
}

// UnaryRateLimitInterceptor runs the call through the decision engine before
// the handler. Dimensions mirror the HTTP middleware: client address, method
// as path, and the subject/tenant metadata the gateway forwards. Degraded
// fail-closed decisions surface as Unavailable, rejections as
// ResourceExhausted.
func (ic *InterceptorChain) UnaryRateLimitInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		decision := ic.engine.Check(ctx, extractDimensions(ctx, info.FullMethod))
		if decision.Allowed {
			return handler(ctx, req)
		}

		if decision.StatusCode == http.StatusServiceUnavailable {
			return nil, status.Errorf(grpcCodes.Unavailable, "rate limiter unavailable")
		}
		return nil, status.Errorf(grpcCodes.ResourceExhausted,
			"rate limit exceeded, retry after %ds", int64(decision.RetryAfter(time.Now()).Seconds())+1)
	}
}

func extractDimensions(ctx context.Context, fullMethod string) map[string]string {
	dimensions := map[string]string{
		constants.DimensionMethod: "POST",
		constants.DimensionPath:   fullMethod,
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		dimensions[constants.DimensionClientIP] = p.Addr.String()
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return dimensions
	}
	if ips := md.Get("x-forwarded-for"); len(ips) > 0 {
		dimensions[constants.DimensionClientIP] = ips[0]
	}
	if subjects := md.Get("x-subject-id"); len(subjects) > 0 {
		dimensions[constants.DimensionSubject] = subjects[0]
	}
	if tenants := md.Get("x-tenant-id"); len(tenants) > 0 {
		dimensions[constants.DimensionTenant] = tenants[0]
	}
	return dimensions
}

// ChainUnaryInterceptors returns the server option wiring the full chain.
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		ic.UnaryRecoveryInterceptor(),
		ic.UnaryLoggingInterceptor(),
		ic.UnaryRateLimitInterceptor(),
	)
}
