package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Generator serves one catalog model through Ollama.
type Generator struct {
	backend.Health

	desc   catalog.Descriptor
	model  string
	client *Client
}

var _ backend.Generator = (*Generator)(nil)

// NewGenerator creates a generator for desc. model overrides the Ollama
// model name; it defaults to the descriptor id.
func NewGenerator(desc catalog.Descriptor, model string, client *Client) *Generator {
	if model == "" {
		model = desc.ID
	}
	return &Generator{desc: desc, model: model, client: client}
}

// ID returns the catalog id.
func (g *Generator) ID() string {
	return g.desc.ID
}

// ModelName returns the model name sent to the server.
func (g *Generator) ModelName() string {
	return g.model
}

// Probe checks that the server answers and has the model installed.
func (g *Generator) Probe(ctx context.Context) backend.ProbeResult {
	names, err := g.client.Tags(ctx)
	if err != nil {
		return g.Record(backend.Unavailable(err.Error()))
	}

	want := catalog.NormalizeModelName(g.model)
	for _, n := range names {
		if catalog.NormalizeModelName(n) == want {
			return g.Record(backend.Ready())
		}
	}

	return g.Record(backend.Unavailable(fmt.Sprintf("model %s is not installed", g.model)))
}

// Generate sends messages to the model.
func (g *Generator) Generate(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error) {
	out, err := g.client.Chat(ctx, g.model, messages, g.options(opts))
	if err != nil {
		g.Observe(err)
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", backend.ErrEmptyOutput
	}

	g.Observe(nil)
	return out, nil
}

func (g *Generator) options(opts backend.Options) map[string]any {
	temp := opts.Temperature
	if temp == 0 {
		temp = g.desc.Temperature()
	}

	o := map[string]any{"temperature": temp}
	if opts.MaxTokens > 0 {
		o["num_predict"] = opts.MaxTokens
	}
	if opts.TopK > 0 {
		o["top_k"] = opts.TopK
	}
	if opts.TopP > 0 {
		o["top_p"] = opts.TopP
	}
	if n := g.desc.ContextWindow(); n > 0 {
		o["num_ctx"] = n
	}

	return o
}

// Describe reports the model and server.
func (g *Generator) Describe() backend.Description {
	healthy, reason := g.Status()
	return backend.Description{
		ID:          g.desc.ID,
		DisplayName: g.desc.Name(),
		Kind:        catalog.KindGeneration,
		Provider:    "ollama",
		Features:    []string{"chat"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"model":          g.model,
			"base_url":       g.client.BaseURL(),
			"context_window": g.desc.ContextWindow(),
		},
	}
}

// Close is a no-op; the server is not owned by the adapter.
func (g *Generator) Close() error {
	return nil
}

// Inventory lists installed models for the availability prober.
type Inventory struct {
	client *Client
}

// NewInventory creates an inventory source backed by client.
func NewInventory(client *Client) *Inventory {
	return &Inventory{client: client}
}

// List returns the installed model names.
func (i *Inventory) List(ctx context.Context) ([]string, error) {
	return i.client.Tags(ctx)
}
