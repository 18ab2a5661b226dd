// Package grpc exposes the health service over gRPC. Every call passes
// through the identity interceptor, so services registered later can read
// the caller from the context the same way HTTP handlers do.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const defaultProbeInterval = 10 * time.Second

type GRPCServer struct {
	address  string
	authn    HeaderAuthenticator
	check    func(context.Context) error
	health   *health.Server
	interval time.Duration
	logger   logging.Logger
}

type Option func(*GRPCServer)

// WithProbeInterval sets how often the store is pinged to refresh the
// health status.
func WithProbeInterval(d time.Duration) Option {
	return func(s *GRPCServer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewGRPCServer builds a server listening on a. check reports store
// reachability; nil means always serving.
func NewGRPCServer(a string, authn HeaderAuthenticator, check func(context.Context) error, l logging.Logger, opts ...Option) *GRPCServer {
	if check == nil {
		check = func(context.Context) error { return nil }
	}
	s := &GRPCServer{
		address:  a,
		authn:    authn,
		check:    check,
		health:   health.NewServer(),
		interval: defaultProbeInterval,
		logger:   l.With("module", "grpc_server"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.identityUnaryInterceptor),
		grpc.ChainStreamInterceptor(s.identityStreamInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	s.probe(ctx)
	go s.watchHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections; ErrServerStopped means ctx was
	// cancelled before Serve got going
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

func (s *GRPCServer) watchHealth(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.check(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "health probe failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}
