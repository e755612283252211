package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authcore/internal/server/interceptors"
)

// PublicMethods are the gRPC methods callable without a bearer token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
}

// Deps holds the dependencies of the gRPC server.
type Deps struct {
	// Auth authenticates bearer tokens on protected methods.
	Auth interceptors.Authenticator
	// Health publishes serving status; the readiness checker keeps it current.
	Health *health.Server
	// TrustedProxies may forward the client address in metadata; nil trusts nobody.
	TrustedProxies *interceptors.TrustedProxies
}

// NewGRPCServer returns a server with tracing, client IP capture and bearer authentication,
// and every service registered.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.ClientIPUnary(deps.TrustedProxies),
			interceptors.AuthUnary(deps.Auth, PublicMethods()),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the gRPC services with s.
//
//   - grpc.health.v1.Health → google.golang.org/grpc/health, status driven by internal/health
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
}
