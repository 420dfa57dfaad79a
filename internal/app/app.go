// Package app builds the orchestrator and its services from the
// configuration and swaps them when the configuration changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/backend/ollama"
	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/metrics"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
	"github.com/ekisa-team/polyglot/internal/service"
)

// Error definitions for the app package.
var (
	ErrUnsupportedAdapter = errors.New("adapter does not serve this capability")
	ErrClosed             = errors.New("app is closed")
)

// Option configures an App.
type Option func(*App)

// WithRunner replaces the subprocess runner of the CLI adapters and the
// model downloader.
func WithRunner(r backend.CommandRunner) Option {
	return func(a *App) { a.runner = r }
}

// WithMetrics sets the metrics the orchestrators report to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// App owns the current orchestrator, the managed engine servers and the
// services built on top of them.
type App struct {
	metrics *metrics.Metrics
	runner  backend.CommandRunner
	logger  *slog.Logger
	servers *backend.ServerManager

	orch atomic.Pointer[orchestrator.Orchestrator]
	cfg  atomic.Pointer[config.Config]

	// mu serializes Reload and Close.
	mu     sync.Mutex
	closed bool

	Chat   *service.Chat
	Models *service.Models
	Speech *service.Speech
}

// New builds and starts an orchestrator from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{servers: backend.NewServerManager()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	orch, err := a.start(ctx, cfg)
	if err != nil {
		a.servers.StopAll()
		return nil, err
	}
	a.orch.Store(orch)
	a.cfg.Store(cfg)

	a.Chat = service.NewChat(a.Orchestrator, cfg.Conversation, a.logger)
	a.Models = service.NewModels(a.Orchestrator)
	a.Speech = service.NewSpeech(a.Orchestrator, a.defaultEngine)

	return a, nil
}

// Orchestrator returns the current orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch.Load()
}

// Config returns the configuration the current orchestrator was built from.
func (a *App) Config() *config.Config {
	return a.cfg.Load()
}

// Metrics returns the metrics the orchestrators report to.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) defaultEngine() string {
	if cfg := a.cfg.Load(); cfg != nil {
		return cfg.Speech.Default
	}
	return ""
}

// Reload builds and starts an orchestrator from cfg, then makes it current
// and closes the previous one. On error the current orchestrator is kept.
// Conversation history survives; the conversation modes are replaced.
func (a *App) Reload(ctx context.Context, cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	orch, err := a.start(ctx, cfg)
	if err != nil {
		return err
	}

	prev := a.orch.Swap(orch)
	a.cfg.Store(cfg)
	a.Chat.Configure(cfg.Conversation)

	if prev != nil {
		if err := prev.Close(); err != nil {
			a.logger.Warn("Failed to close previous orchestrator", "error", err)
		}
	}

	a.logger.Info("Configuration applied",
		"generation_backends", len(cfg.Generation.Backends),
		"speech_backends", len(cfg.Speech.Backends))
	return nil
}

func (a *App) start(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	modelsDir, err := config.EnsureModelsDirectory(cfg)
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:       cfg,
		modelsDir: modelsDir,
		servers:   a.servers,
		runner:    a.runner,
		recorder:  a.metrics,
		logger:    a.logger,
		ollama:    map[string]*ollama.Client{},
	}
	orch, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	orch.Start(ctx)
	a.servers.Retain(b.managed)

	return orch, nil
}

// Close closes the current orchestrator and stops every managed server.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if orch := a.orch.Load(); orch != nil {
		err = orch.Close()
	}
	a.servers.StopAll()

	return err
}
