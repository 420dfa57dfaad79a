package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Conversation mode names.
const (
	ModeSpeed    = "speed"
	ModeBalanced = "balanced"
	ModeQuality  = "quality"
)

const (
	defaultHTTPPort           = 8000
	defaultGRPCPort           = 9000
	defaultGenerationProbe    = 10 * time.Second
	defaultSpeechProbe        = 20 * time.Second
	defaultOllamaURL          = "http://localhost:11434"
	defaultKokoroURL          = "http://localhost:8880/v1"
	defaultGenerationBackend  = "gemma2:2b"
	defaultSpeechBackend      = "system"
	defaultBenchmarkMode      = "skip"
	defaultSchemaFilename     = "polyglot.v1.schema.json"
	defaultConfigFilename     = "config.yaml"
	defaultCloudSpeechBaseURL = "https://api.openai.com/v1"
)

// DefaultHTTPPort returns the default HTTP listener port.
func DefaultHTTPPort() int { return defaultHTTPPort }

// DefaultGRPCPort returns the default gRPC listener port.
func DefaultGRPCPort() int { return defaultGRPCPort }

// DefaultConfigFile returns the default path of the config file.
func DefaultConfigFile() string {
	return filepath.Join(DefaultConfigPath(), defaultConfigFilename)
}

// DefaultConfigPath returns the default path for the polyglot config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "polyglot", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "polyglot")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "polyglot")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "polyglot")
		}
		return filepath.Join(home, ".config", "polyglot")
	}
}

// DefaultModelsPath returns the default path for the polyglot models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "polyglot", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "polyglot", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "polyglot", "models")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "polyglot", "models")
		}
		return filepath.Join(home, ".cache", "polyglot", "models")
	}
}

// DefaultModes returns the built-in conversation modes.
func DefaultModes() map[string]ModeConfig {
	return map[string]ModeConfig{
		ModeSpeed: {
			MaxTokens: 50, Temperature: 0.7, TopK: 40, TopP: 0.9,
			AutoSwitch: true, ContextLimit: 5,
		},
		ModeBalanced: {
			MaxTokens: 100, Temperature: 0.8, TopK: 40, TopP: 0.9,
			AutoSwitch: true, ContextLimit: 10,
		},
		ModeQuality: {
			MaxTokens: 200, Temperature: 0.9, TopK: 40, TopP: 0.9,
			AutoSwitch: false, ContextLimit: 20,
		},
	}
}

// DefaultGenerationBackends declares the built-in chat models, all served
// by Ollama.
func DefaultGenerationBackends() []BackendConfig {
	descs := catalog.DefaultGeneration()
	out := make([]BackendConfig, 0, len(descs))
	for _, d := range descs {
		b := fromDescriptor(d)
		b.Adapter = AdapterConfig{Type: AdapterOllama, Model: d.ID}
		out = append(out, b)
	}
	return out
}

// DefaultSpeechBackends declares the built-in speech engines: espeak-ng for
// the system voice, a local Kokoro server for the neural voices and the
// OpenAI speech API for the cloud voice.
func DefaultSpeechBackends() []BackendConfig {
	descs := catalog.DefaultSpeech()
	out := make([]BackendConfig, 0, len(descs))
	for _, d := range descs {
		b := fromDescriptor(d)
		switch d.ID {
		case "system":
			b.Adapter = AdapterConfig{Type: AdapterEspeak}
		case "cloud":
			b.Adapter = AdapterConfig{Type: AdapterOpenAI, BaseURL: defaultCloudSpeechBaseURL}
		default:
			b.Adapter = AdapterConfig{Type: AdapterOpenAI, BaseURL: defaultKokoroURL, Model: "kokoro", APIKey: "not-needed"}
		}
		out = append(out, b)
	}
	return out
}

func fromDescriptor(d catalog.Descriptor) BackendConfig {
	return BackendConfig{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Tags:        d.Tags,
		Speed:       d.SpeedRating,
		Quality:     d.QualityRating,
		Footprint:   d.Footprint,
		Params:      d.Params,
	}
}

// Default returns a complete configuration built from the defaults.
func Default() *Config {
	cfg := &Config{Version: "1"}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = defaultHTTPPort
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = defaultGRPCPort
	}

	if cfg.Conversation.Mode == "" {
		cfg.Conversation.Mode = ModeBalanced
	}
	if cfg.Conversation.Modes == nil {
		cfg.Conversation.Modes = map[string]ModeConfig{}
	}
	for name, m := range DefaultModes() {
		if _, ok := cfg.Conversation.Modes[name]; !ok {
			cfg.Conversation.Modes[name] = m
		}
	}

	gen := &cfg.Generation
	if len(gen.Backends) == 0 {
		gen.Backends = DefaultGenerationBackends()
		if gen.Default == "" {
			gen.Default = defaultGenerationBackend
		}
		if gen.Inventory.Type == "" {
			gen.Inventory.Type = InventoryOllama
		}
	}
	if gen.Inventory.Type == "" {
		gen.Inventory.Type = InventoryNone
	}
	if gen.Inventory.Type == InventoryOllama && gen.Inventory.BaseURL == "" {
		gen.Inventory.BaseURL = defaultOllamaURL
	}
	if gen.ProbeTimeout == 0 {
		gen.ProbeTimeout = defaultGenerationProbe
	}
	if gen.Benchmark.Mode == "" {
		gen.Benchmark.Mode = defaultBenchmarkMode
	}
	for i := range gen.Backends {
		a := &gen.Backends[i].Adapter
		if a.Type == AdapterOllama && a.BaseURL == "" {
			a.BaseURL = defaultOllamaURL
		}
		if a.Model == "" && (a.Type == AdapterOllama || a.Type == AdapterOpenAI) {
			a.Model = gen.Backends[i].ID
		}
	}

	sp := &cfg.Speech
	if len(sp.Backends) == 0 {
		sp.Backends = DefaultSpeechBackends()
		if sp.Default == "" {
			sp.Default = defaultSpeechBackend
		}
	}
	if sp.ProbeTimeout == 0 {
		sp.ProbeTimeout = defaultSpeechProbe
	}
	if sp.Languages == nil {
		sp.Languages = catalog.DefaultLanguages()
	}

	if cfg.Storage.ModelsDir == "" {
		cfg.Storage.ModelsDir = DefaultModelsPath()
	}
}
