// Package grpc serves the standard gRPC health service, reporting whether
// the generation and speech sides have an active backend.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ekisa-team/polyglot/internal/orchestrator"
)

// Health service names. The empty name reports the whole process.
const (
	GenerationService = "polyglot.Generation"
	SpeechService     = "polyglot.Speech"
)

const defaultInterval = 5 * time.Second

// Config configures the gRPC server.
type Config struct {
	Port int

	// Source returns the orchestrator whose state is reported.
	Source func() *orchestrator.Orchestrator

	// Interval is how often the status is refreshed.
	Interval time.Duration

	Logger *slog.Logger
}

// Server is the gRPC health server.
type Server struct {
	cfg    Config
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New builds the server and registers the health and reflection services.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{cfg: cfg, srv: srv, health: hs, logger: logger}
	s.Update()
	return s
}

// Update sets the serving status of each service from the orchestrator.
func (s *Server) Update() {
	var orch *orchestrator.Orchestrator
	if s.cfg.Source != nil {
		orch = s.cfg.Source()
	}

	gen, speech := false, false
	if orch != nil {
		_, gen = orch.Generation.Active()
		_, speech = orch.Speech.Active()
	}

	s.health.SetServingStatus(GenerationService, status(gen))
	s.health.SetServingStatus(SpeechService, status(speech))
	s.health.SetServingStatus("", status(gen && speech))
}

func status(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, refreshing the health status every
// interval.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- s.srv.Serve(lis)
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		case <-ticker.C:
			s.Update()
		case <-ctx.Done():
			s.logger.Info("Shutting down gRPC server")
			s.health.Shutdown()
			s.srv.GracefulStop()
			return nil
		}
	}
}
