package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/polyglot/internal/envvar"
	"github.com/ekisa-team/polyglot/internal/xfs"
)

//go:embed polyglot.v1.schema.json
var embeddedSchema []byte

// LoadAndValidate loads and validates the configuration. An empty schemaPath
// validates against the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data, schemaPath)
}

// Parse validates raw YAML and decodes it into a Config with defaults and
// environment overrides applied.
func Parse(data []byte, schemaPath string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into Config struct: %w", err)
	}

	applyDefaults(&cfg)
	ApplyEnv(&cfg)

	return &cfg, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}

	const url = "polyglot.v1.schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// ApplyEnv overrides cfg values from the process environment.
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

// applyEnv overrides config values from the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(envvar.PolyglotServerHTTPPort); ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.HTTPPort = port
		}
	}
	if v, ok := lookup(envvar.PolyglotServerGRPCPort); ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.GRPCPort = port
		}
	}
	if v, ok := lookup(envvar.PolyglotModelsPath); ok && v != "" {
		cfg.Storage.ModelsDir = v
	}

	if v, ok := lookup(envvar.PolyglotOllamaURL); ok && v != "" {
		if cfg.Generation.Inventory.Type == InventoryOllama {
			cfg.Generation.Inventory.BaseURL = v
		}
		for i := range cfg.Generation.Backends {
			if a := &cfg.Generation.Backends[i].Adapter; a.Type == AdapterOllama {
				a.BaseURL = v
			}
		}
	}

	if v, ok := lookup(envvar.PolyglotOpenAIAPIKey); ok && v != "" {
		if inv := &cfg.Generation.Inventory; inv.Type == InventoryOpenAI && inv.APIKey == "" {
			inv.APIKey = v
		}
		for _, backends := range [][]BackendConfig{cfg.Generation.Backends, cfg.Speech.Backends} {
			for i := range backends {
				if a := &backends[i].Adapter; a.Type == AdapterOpenAI && a.APIKey == "" {
					a.APIKey = v
				}
			}
		}
	}
}

// EnsureModelsDirectory creates the models directory if needed and returns
// its expanded path.
func EnsureModelsDirectory(cfg *Config) (string, error) {
	dir := cfg.Storage.ModelsDir
	if dir == "" {
		dir = DefaultModelsPath()
	}
	dir = xfs.ExpandTilde(dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}
	return dir, nil
}
