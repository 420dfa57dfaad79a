package backend

import (
	"context"

	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Adapter is the part of the capability contract shared by every backend.
type Adapter interface {
	// ID returns the catalog id the adapter serves.
	ID() string

	// Probe attempts to activate the backend and reports whether it is usable.
	Probe(ctx context.Context) ProbeResult

	// Describe returns a snapshot of the adapter's dynamic information.
	Describe() Description

	// Close cleans up resources.
	Close() error
}

// Generator is a text-generation backend.
type Generator interface {
	Adapter

	// Generate produces the assistant reply for messages.
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
}

// ModelNamer is implemented by adapters that call their server under a
// model name other than the catalog id.
type ModelNamer interface {
	ModelName() string
}

// ModelName returns the name a serves its model under, or its id.
func ModelName(a Adapter) string {
	if n, ok := a.(ModelNamer); ok {
		if name := n.ModelName(); name != "" {
			return name
		}
	}
	return a.ID()
}

// Synthesizer is a speech-synthesis backend.
type Synthesizer interface {
	Adapter

	// Synthesize renders text as audio. voiceHint may be empty, in which case
	// the backend uses its configured voice.
	Synthesize(ctx context.Context, text, voiceHint string) (*Audio, error)
}

// ProbeResult is the outcome of an availability probe.
type ProbeResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Ready is a successful probe.
func Ready() ProbeResult {
	return ProbeResult{OK: true}
}

// Unavailable is a failed probe carrying the reason.
func Unavailable(reason string) ProbeResult {
	return ProbeResult{Reason: reason}
}

// Description is the dynamic information an adapter reports about itself.
type Description struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Kind        catalog.Kind   `json:"kind"`
	Provider    string         `json:"provider"`
	Features    []string       `json:"features,omitempty"`
	Healthy     bool           `json:"healthy"`
	Reason      string         `json:"reason,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat exchange.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling options of a generation call. Zero values leave
// the backend default in place.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}
