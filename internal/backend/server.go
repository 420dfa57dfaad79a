package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ServerManager manages engine server processes that adapters start on
// demand during probing (for example a local Kokoro server). Servers are
// identified by ServerConfig.Key, so backends sharing one server share
// one process.
type ServerManager struct {
	servers map[string]*ServerProcess
	client  *http.Client
	starts  singleflight.Group
	mu      sync.Mutex

	// base parents every process; StopAll cancels it.
	base   context.Context
	cancel context.CancelFunc
}

// ServerProcess represents a server running process.
type ServerProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// ServerConfig defines how to start and check an engine server.
type ServerConfig struct {
	Env map[string]string
	// Name identifies the server; it defaults to the binary path.
	Name         string
	BinPath      string
	HealthURL    string
	Args         []string
	Port         int
	ReadyTimeout time.Duration
}

// Key identifies the server process cfg describes.
func (cfg ServerConfig) Key() string {
	name := cfg.Name
	if name == "" {
		name = cfg.BinPath
	}
	return fmt.Sprintf("%s-%d", name, cfg.Port)
}

// NewServerManager initializes a ServerManager.
func NewServerManager() *ServerManager {
	base, cancel := context.WithCancel(context.Background())
	return &ServerManager{
		servers: map[string]*ServerProcess{},
		client:  &http.Client{Timeout: 1 * time.Second},
		base:    base,
		cancel:  cancel,
	}
}

// StartServer starts an engine server and waits until its health URL
// answers 200. Concurrent starts of one key share a single launch, and
// starts of different keys never wait on each other. ctx bounds only this
// caller's wait; the launch runs until ReadyTimeout and the process is
// stopped with StopServer, Retain or StopAll.
func (sm *ServerManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	key := cfg.Key()
	if sm.Running(key) {
		return nil
	}

	ch := sm.starts.DoChan(key, func() (any, error) {
		return nil, sm.launch(key, cfg)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s server: %v", ErrUnreachable, key, ctx.Err())
	}
}

func (sm *ServerManager) launch(key string, cfg ServerConfig) error {
	if sm.Running(key) {
		return nil // Started by a previous flight
	}

	if info, err := os.Stat(cfg.BinPath); err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", cfg.BinPath)
		}
		return fmt.Errorf("%w: %s server: %v", ErrBinaryNotFound, key, err)
	}

	sm.mu.Lock()
	base := sm.base
	sm.mu.Unlock()

	procCtx, cancel := context.WithCancel(base)
	cmd := exec.CommandContext(procCtx, cfg.BinPath, cfg.Args...)

	// Apply environment variables if provided
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s server: %w", key, err)
	}

	timeout := cfg.ReadyTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	proc := &ServerProcess{cmd: cmd, cancel: cancel}
	if err := sm.WaitReady(procCtx, cfg.HealthURL, timeout); err != nil {
		proc.stop()
		return fmt.Errorf("%s server did not become ready: %w", key, err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if procCtx.Err() != nil {
		proc.stop()
		return fmt.Errorf("%s server stopped while starting", key)
	}
	sm.servers[key] = proc

	slog.Info("Server started", "server", key, "port", cfg.Port)
	return nil
}

// Running reports whether the server with that key was started.
func (sm *ServerManager) Running(key string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	_, ok := sm.servers[key]
	return ok
}

// StopServer terminates an engine server.
func (sm *ServerManager) StopServer(key string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	srv, exists := sm.servers[key]
	if !exists {
		return fmt.Errorf("server %s not found", key)
	}

	srv.stop()
	delete(sm.servers, key)
	slog.Info("Server stopped", "server", key)
	return nil
}

// StopAll terminates all running servers and abandons pending starts.
func (sm *ServerManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.cancel()
	for _, srv := range sm.servers {
		srv.stop()
	}
	sm.servers = map[string]*ServerProcess{}
	sm.base, sm.cancel = context.WithCancel(context.Background())

	slog.Info("All servers stopped")
}

// Retain stops every running server that keep does not list.
func (sm *ServerManager) Retain(keep []ServerConfig) {
	wanted := make(map[string]bool, len(keep))
	for _, cfg := range keep {
		wanted[cfg.Key()] = true
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for key, srv := range sm.servers {
		if wanted[key] {
			continue
		}
		srv.stop()
		delete(sm.servers, key)
		slog.Info("Server stopped", "server", key)
	}
}

// WaitReady polls url until it answers 200, timeout elapses or ctx ends.
func (sm *ServerManager) WaitReady(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := CheckHealth(ctx, sm.client, url); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: no healthy response at %s within %v", ErrUnreachable, url, timeout)
		case <-ticker.C:
		}
	}
}

// CheckHealth issues one GET against url and expects a 200.
func CheckHealth(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check %s returned status %d", url, resp.StatusCode)
	}

	return nil
}

func (p *ServerProcess) stop() {
	p.cancel()
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			slog.Debug("Server process already exited", "error", err)
		}
	}
	_ = p.cmd.Wait()
}
