// Package openai adapts OpenAI-compatible servers (the OpenAI API, a local
// Kokoro server, llama.cpp's server) to the generation and speech contracts.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ekisa-team/polyglot/internal/backend"
)

// Config holds the connection settings shared by the adapters.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// HealthURL, when set, is polled by Probe instead of listing models.
	HealthURL string

	// Server, when set, is started through the manager on first probe.
	Server *backend.ServerConfig
}

// Conn is an OpenAI-compatible endpoint plus its optional managed server.
type Conn struct {
	cfg     Config
	client  *goopenai.Client
	http    *http.Client
	servers *backend.ServerManager
}

// NewConn creates a connection. servers may be nil when cfg.Server is unset.
func NewConn(cfg Config, servers *backend.ServerManager) *Conn {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}

	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = hc

	return &Conn{
		cfg:     cfg,
		client:  goopenai.NewClientWithConfig(oc),
		http:    hc,
		servers: servers,
	}
}

// BaseURL returns the endpoint address.
func (c *Conn) BaseURL() string {
	if c.cfg.BaseURL == "" {
		return "https://api.openai.com/v1"
	}
	return c.cfg.BaseURL
}

// Check verifies the endpoint is usable, starting the managed server first
// when one is configured.
func (c *Conn) Check(ctx context.Context) error {
	if c.cfg.Server != nil {
		if c.servers == nil {
			return fmt.Errorf("managed server %s configured without a server manager", c.cfg.Server.Key())
		}
		if err := c.servers.StartServer(ctx, *c.cfg.Server); err != nil {
			return err
		}
	}

	if c.cfg.HealthURL != "" {
		return backend.CheckHealth(ctx, c.http, c.cfg.HealthURL)
	}

	if c.cfg.BaseURL == "" && c.cfg.APIKey == "" {
		return fmt.Errorf("api key is not set")
	}

	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Models lists the model ids the endpoint serves.
func (c *Conn) Models(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Close releases the connection. A managed server keeps running; its
// lifetime belongs to the ServerManager owner.
func (c *Conn) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Inventory lists served models for the availability prober.
type Inventory struct {
	conn *Conn
}

// NewInventory creates an inventory source backed by conn.
func NewInventory(conn *Conn) *Inventory {
	return &Inventory{conn: conn}
}

// List returns the served model ids.
func (i *Inventory) List(ctx context.Context) ([]string, error) {
	return i.conn.Models(ctx)
}
