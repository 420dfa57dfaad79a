package openai

import (
	"context"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Generator serves one catalog model through a chat completions endpoint.
type Generator struct {
	backend.Health

	desc  catalog.Descriptor
	model string
	conn  *Conn
}

var _ backend.Generator = (*Generator)(nil)

// NewGenerator creates a generator. The model defaults to the descriptor id.
func NewGenerator(desc catalog.Descriptor, conn *Conn) *Generator {
	model := conn.cfg.Model
	if model == "" {
		model = desc.ID
	}
	return &Generator{desc: desc, model: model, conn: conn}
}

// ID returns the catalog id.
func (g *Generator) ID() string {
	return g.desc.ID
}

// ModelName returns the model name sent to the server.
func (g *Generator) ModelName() string {
	return g.model
}

// Probe checks the endpoint.
func (g *Generator) Probe(ctx context.Context) backend.ProbeResult {
	if err := g.conn.Check(ctx); err != nil {
		return g.Record(backend.Unavailable(err.Error()))
	}
	return g.Record(backend.Ready())
}

// Generate runs a chat completion.
func (g *Generator) Generate(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error) {
	temp := opts.Temperature
	if temp == 0 {
		temp = g.desc.Temperature()
	}

	req := goopenai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(temp),
		TopP:        float32(opts.TopP),
	}

	resp, err := g.conn.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.Observe(err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", backend.ErrEmptyOutput
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", backend.ErrEmptyOutput
	}

	g.Observe(nil)
	return out, nil
}

// Describe reports the endpoint and model.
func (g *Generator) Describe() backend.Description {
	healthy, reason := g.Status()
	return backend.Description{
		ID:          g.desc.ID,
		DisplayName: g.desc.Name(),
		Kind:        catalog.KindGeneration,
		Provider:    "openai",
		Features:    []string{"chat"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"model":    g.model,
			"base_url": g.conn.BaseURL(),
		},
	}
}

// Close stops the managed server, if any.
func (g *Generator) Close() error {
	return g.conn.Close()
}

func toMessages(msgs []backend.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case backend.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case backend.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
