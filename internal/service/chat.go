// Package service implements the chat, model and speech use cases on top of
// the orchestrator.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
	"github.com/ekisa-team/polyglot/internal/selection"
)

// Source returns the orchestrator currently serving requests. It may change
// between calls when the configuration is reloaded.
type Source func() *orchestrator.Orchestrator

// ChatRequest is one user message.
type ChatRequest struct {
	Message string

	// Category bypasses classification when auto switching.
	Category selection.Category

	// ModelPreference is used when auto switching is off.
	ModelPreference string
}

// ChatStats describes how a reply was produced.
type ChatStats struct {
	ModelUsed          string  `json:"model_used"`
	Category           string  `json:"category,omitempty"`
	ResponseTime       float64 `json:"response_time"`
	TokensGenerated    int     `json:"tokens_generated"`
	ConversationLength int     `json:"conversation_length"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response  string        `json:"response"`
	Stats     ChatStats     `json:"stats"`
	ModelInfo *catalog.Info `json:"model_info,omitempty"`
}

// Chat runs a single conversation against the generation backends.
type Chat struct {
	source  Source
	history *History
	logger  *slog.Logger

	mu    sync.RWMutex
	mode  string
	modes map[string]config.ModeConfig
}

// NewChat creates a chat service using the conversation settings in conv.
func NewChat(source Source, conv config.ConversationConfig, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chat{source: source, history: NewHistory(), logger: logger}
	c.Configure(conv)
	return c
}

// Configure replaces the available modes and selects conv.Mode. Unknown
// modes fall back to balanced.
func (c *Chat) Configure(conv config.ConversationConfig) {
	modes := config.DefaultModes()
	maps.Copy(modes, conv.Modes)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.modes = modes
	c.mode = conv.Mode
	if _, ok := modes[c.mode]; !ok {
		c.mode = config.ModeBalanced
	}
}

// Mode returns the active conversation mode.
func (c *Chat) Mode() (string, config.ModeConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.mode, c.modes[c.mode]
}

// Modes returns the names of every conversation mode, sorted.
func (c *Chat) Modes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.modes))
}

// SetMode selects a conversation mode.
func (c *Chat) SetMode(name string) (config.ModeConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.modes[name]
	if !ok {
		return config.ModeConfig{}, fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
	c.mode = name

	c.logger.Info("Conversation mode changed", "mode", name)
	return m, nil
}

// History returns the conversation history.
func (c *Chat) History() *History {
	return c.history
}

// Send generates a reply to req using the last context_limit turns of the
// conversation, and records the exchange.
func (c *Chat) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	orch := c.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	_, mode := c.Mode()
	recent := c.history.Recent(mode.ContextLimit)

	messages := make([]backend.Message, 0, 2*len(recent)+1)
	for _, t := range recent {
		messages = append(messages,
			backend.Message{Role: backend.RoleUser, Content: t.Input},
			backend.Message{Role: backend.RoleAssistant, Content: t.Output})
	}
	messages = append(messages, backend.Message{Role: backend.RoleUser, Content: msg})

	greq := orchestrator.GenerateRequest{
		Messages: messages,
		Options: backend.Options{
			Temperature: mode.Temperature,
			MaxTokens:   mode.MaxTokens,
			TopK:        mode.TopK,
			TopP:        mode.TopP,
		},
		SystemPrompt: true,
	}
	if mode.AutoSwitch {
		greq.AutoSelect = true
		greq.Category = req.Category
		greq.Signal = selection.Signal{Message: msg, HistoryLength: c.history.Len()}
	} else {
		greq.Override = req.ModelPreference
	}

	res := orch.Generation.Dispatch(ctx, greq)
	if !res.Success {
		return nil, resultError(res.ErrorKind, res.Error)
	}

	c.history.Append(Turn{
		Input:     msg,
		Output:    res.Text,
		BackendID: res.BackendID,
		Timestamp: time.Now(),
	})

	return &ChatResponse{
		Response: res.Text,
		Stats: ChatStats{
			ModelUsed:          res.BackendID,
			Category:           string(res.Category),
			ResponseTime:       res.Latency.Seconds(),
			TokensGenerated:    len(strings.Fields(res.Text)),
			ConversationLength: c.history.Len(),
		},
		ModelInfo: modelInfo(orch, res.BackendID),
	}, nil
}

func modelInfo(orch *orchestrator.Orchestrator, id string) *catalog.Info {
	for _, info := range orch.Generation.Infos() {
		if info.ID == id {
			return &info
		}
	}
	return nil
}
