// Package server builds the HTTP router and the gRPC server.
package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hungle-ag/task-manager-server/internal/server/interceptors"
)

// healthCheckMethod is polled by orchestrator health checks and not logged.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds dependencies for gRPC services.
type Deps struct {
	// Health is the gRPC health service. If nil, a new one reporting SERVING is registered.
	Health *health.Server
}

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and request logging.
func NewGRPCServer(logger zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.LoggingUnary(logger, map[string]bool{healthCheckMethod: true})),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// RegisterServices registers the gRPC services with s and returns the health server in use.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) *health.Server {
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	return hs
}
