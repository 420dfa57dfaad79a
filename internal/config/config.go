package config

import (
	"time"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/config/source"
)

// AdapterType names the concrete engine behind a backend.
type AdapterType string

const (
	AdapterOllama AdapterType = "ollama"
	AdapterOpenAI AdapterType = "openai"
	AdapterLlama  AdapterType = "llama"
	AdapterPiper  AdapterType = "piper"
	AdapterEspeak AdapterType = "espeak"
)

// InventoryType names the source queried for installed generation models.
type InventoryType string

const (
	InventoryNone   InventoryType = "none"
	InventoryOllama InventoryType = "ollama"
	InventoryOpenAI InventoryType = "openai"
)

// Config holds the main configuration for the application.
type Config struct {
	Version      string             `json:"version"                yaml:"version"`
	Server       ServerConfig       `json:"server,omitempty"       yaml:"server,omitempty"`
	Conversation ConversationConfig `json:"conversation,omitempty" yaml:"conversation,omitempty"`
	Generation   GenerationConfig   `json:"generation,omitempty"   yaml:"generation,omitempty"`
	Speech       SpeechConfig       `json:"speech,omitempty"       yaml:"speech,omitempty"`
	Storage      StorageConfig      `json:"storage,omitempty"      yaml:"storage,omitempty"`
}

// ServerConfig holds listener ports.
type ServerConfig struct {
	HTTPPort int `json:"http_port,omitempty" yaml:"http_port,omitempty"`
	GRPCPort int `json:"grpc_port,omitempty" yaml:"grpc_port,omitempty"`
}

// StorageConfig holds the directory engine models are downloaded to.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ConversationConfig selects the active conversation mode.
type ConversationConfig struct {
	Mode  string                `json:"mode,omitempty"  yaml:"mode,omitempty"`
	Modes map[string]ModeConfig `json:"modes,omitempty" yaml:"modes,omitempty"`
}

// ModeConfig holds the generation options of one conversation mode.
type ModeConfig struct {
	MaxTokens    int     `json:"max_tokens"    yaml:"max_tokens"`
	Temperature  float64 `json:"temperature"   yaml:"temperature"`
	TopK         int     `json:"top_k"         yaml:"top_k"`
	TopP         float64 `json:"top_p"         yaml:"top_p"`
	AutoSwitch   bool    `json:"auto_switch"   yaml:"auto_switch"`
	ContextLimit int     `json:"context_limit" yaml:"context_limit"`
}

// GenerationConfig configures the chat model side.
type GenerationConfig struct {
	Default       string          `json:"default,omitempty"         yaml:"default,omitempty"`
	ProbeTimeout  time.Duration   `json:"probe_timeout,omitempty"   yaml:"probe_timeout,omitempty"`
	DemoteOnFatal bool            `json:"demote_on_fatal,omitempty" yaml:"demote_on_fatal,omitempty"`
	Inventory     InventoryConfig `json:"inventory,omitempty"       yaml:"inventory,omitempty"`
	Benchmark     BenchmarkConfig `json:"benchmark,omitempty"       yaml:"benchmark,omitempty"`
	Backends      []BackendConfig `json:"backends,omitempty"        yaml:"backends,omitempty"`
}

// InventoryConfig configures the installed-models query.
type InventoryConfig struct {
	Type    InventoryType `json:"type,omitempty"     yaml:"type,omitempty"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string        `json:"api_key,omitempty"  yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"  yaml:"timeout,omitempty"`
}

// BenchmarkConfig configures the performance estimator.
type BenchmarkConfig struct {
	Mode    string        `json:"mode,omitempty"    yaml:"mode,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SpeechConfig configures the speech engine side.
type SpeechConfig struct {
	Default      string            `json:"default,omitempty"       yaml:"default,omitempty"`
	ProbeTimeout time.Duration     `json:"probe_timeout,omitempty" yaml:"probe_timeout,omitempty"`
	Languages    map[string]string `json:"languages,omitempty"     yaml:"languages,omitempty"`
	Backends     []BackendConfig   `json:"backends,omitempty"      yaml:"backends,omitempty"`
}

// BackendConfig declares one backend: its catalog attributes and the
// adapter that serves it.
type BackendConfig struct {
	ID          string            `json:"id"                     yaml:"id"`
	DisplayName string            `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Tags        []string          `json:"tags"                   yaml:"tags"`
	Speed       int               `json:"speed"                  yaml:"speed"`
	Quality     int               `json:"quality"                yaml:"quality"`
	Footprint   catalog.Footprint `json:"footprint,omitempty"    yaml:"footprint,omitempty"`
	Params      map[string]any    `json:"params,omitempty"       yaml:"params,omitempty"`
	Adapter     AdapterConfig     `json:"adapter"                yaml:"adapter"`
}

// AdapterConfig holds the connection settings of one adapter. Which fields
// matter depends on Type.
type AdapterConfig struct {
	Type      AdapterType   `json:"type"                 yaml:"type"`
	BaseURL   string        `json:"base_url,omitempty"   yaml:"base_url,omitempty"`
	APIKey    string        `json:"api_key,omitempty"    yaml:"api_key,omitempty"`
	Model     string        `json:"model,omitempty"      yaml:"model,omitempty"`
	BinPath   string        `json:"bin_path,omitempty"   yaml:"bin_path,omitempty"`
	ModelPath string        `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"    yaml:"timeout,omitempty"`

	Source *SourceConfig        `json:"source,omitempty" yaml:"source,omitempty"`
	Server *ManagedServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
}

// SourceConfig wraps optional model sources (only one should be set).
type SourceConfig struct {
	HuggingFace *source.HuggingFace `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// ManagedServerConfig describes a local engine server the adapter starts
// on first probe. Backends declaring the same name (or, without a name,
// the same binary) and port share one process.
type ManagedServerConfig struct {
	Name         string            `json:"name,omitempty"          yaml:"name,omitempty"`
	BinPath      string            `json:"bin_path"                yaml:"bin_path"`
	Args         []string          `json:"args,omitempty"          yaml:"args,omitempty"`
	Port         int               `json:"port"                    yaml:"port"`
	HealthURL    string            `json:"health_url,omitempty"    yaml:"health_url,omitempty"`
	ReadyTimeout time.Duration     `json:"ready_timeout,omitempty" yaml:"ready_timeout,omitempty"`
	Env          map[string]string `json:"env,omitempty"           yaml:"env,omitempty"`
}

// Descriptor converts the backend declaration into a catalog entry.
func (b BackendConfig) Descriptor() catalog.Descriptor {
	return catalog.Descriptor{
		ID:            b.ID,
		DisplayName:   b.DisplayName,
		Tags:          b.Tags,
		SpeedRating:   b.Speed,
		QualityRating: b.Quality,
		Footprint:     b.Footprint,
		Params:        b.Params,
	}
}

// Descriptors converts every backend declaration into catalog entries,
// keeping declaration order.
func Descriptors(backends []BackendConfig) []catalog.Descriptor {
	out := make([]catalog.Descriptor, 0, len(backends))
	for _, b := range backends {
		out = append(out, b.Descriptor())
	}
	return out
}

// ActiveMode returns the selected conversation mode, falling back to
// balanced when the name is unknown.
func (c *ConversationConfig) ActiveMode() (string, ModeConfig) {
	if m, ok := c.Modes[c.Mode]; ok {
		return c.Mode, m
	}
	return ModeBalanced, DefaultModes()[ModeBalanced]
}
