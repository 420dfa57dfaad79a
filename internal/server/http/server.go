// Package http exposes the chat, model and speech services over a huma
// REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/ekisa-team/polyglot/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Services are the use cases served over HTTP.
type Services struct {
	Chat   *service.Chat
	Models *service.Models
	Speech *service.Speech
}

// Config configures the HTTP server.
type Config struct {
	Port     int
	Version  string
	Services Services

	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	mux    *http.ServeMux
	api    huma.API
	srv    *http.Server
	logger *slog.Logger
}

// New builds the server and registers every operation.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("polyglot", version))
	api.UseMiddleware(requestLogger(logger))

	Register(api, cfg.Services)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return &Server{
		mux: mux,
		api: api,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Register adds every operation to api.
func Register(api huma.API, s Services) {
	NewHealthHandler(api, s.Models, s.Speech, s.Chat)
	NewModelsHandler(api, s.Models)
	NewChatHandler(api, s.Chat)
	NewSpeechHandler(api, s.Speech)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)
		logger.Debug("HTTP request",
			"method", ctx.Method(),
			"path", ctx.URL().Path,
			"status", ctx.Status(),
			"duration", time.Since(start))
	}
}
