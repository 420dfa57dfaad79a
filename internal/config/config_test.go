package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/envvar"
)

func TestLoadAndValidate_Minimal(t *testing.T) {
	cfg, err := LoadAndValidate("testdata/minimal.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPPort(), cfg.Server.HTTPPort)
	assert.Equal(t, DefaultGRPCPort(), cfg.Server.GRPCPort)
	assert.Equal(t, ModeBalanced, cfg.Conversation.Mode)
	assert.Len(t, cfg.Conversation.Modes, 3)

	assert.Equal(t, "gemma2:2b", cfg.Generation.Default)
	assert.Equal(t, InventoryOllama, cfg.Generation.Inventory.Type)
	assert.Equal(t, "http://localhost:11434", cfg.Generation.Inventory.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Generation.ProbeTimeout)
	assert.Equal(t, "skip", cfg.Generation.Benchmark.Mode)
	require.Len(t, cfg.Generation.Backends, len(catalog.DefaultGeneration()))
	for _, b := range cfg.Generation.Backends {
		assert.Equal(t, AdapterOllama, b.Adapter.Type)
		assert.Equal(t, b.ID, b.Adapter.Model)
	}

	assert.Equal(t, "system", cfg.Speech.Default)
	assert.Equal(t, 20*time.Second, cfg.Speech.ProbeTimeout)
	assert.Equal(t, catalog.DefaultLanguages(), cfg.Speech.Languages)
	require.Len(t, cfg.Speech.Backends, len(catalog.DefaultSpeech()))
	assert.Equal(t, AdapterEspeak, cfg.Speech.Backends[0].Adapter.Type)
	assert.Equal(t, AdapterOpenAI, cfg.Speech.Backends[1].Adapter.Type)
}

func TestLoadAndValidate_Full(t *testing.T) {
	cfg, err := LoadAndValidate("testdata/full.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)

	name, mode := cfg.Conversation.ActiveMode()
	assert.Equal(t, ModeQuality, name)
	assert.Equal(t, 300, mode.MaxTokens)
	assert.Equal(t, 30, mode.ContextLimit)
	assert.Contains(t, cfg.Conversation.Modes, ModeSpeed)

	gen := cfg.Generation
	assert.Equal(t, "local-qwen", gen.Default)
	assert.Equal(t, 5*time.Second, gen.ProbeTimeout)
	assert.True(t, gen.DemoteOnFatal)
	assert.Equal(t, InventoryNone, gen.Inventory.Type)
	assert.Equal(t, "off", gen.Benchmark.Mode)
	require.Len(t, gen.Backends, 2)

	llama := gen.Backends[0]
	assert.Equal(t, AdapterLlama, llama.Adapter.Type)
	assert.Equal(t, 2*time.Minute, llama.Adapter.Timeout)
	require.NotNil(t, llama.Adapter.Source)
	require.NotNil(t, llama.Adapter.Source.HuggingFace)
	assert.Equal(t, "Qwen/Qwen2.5-0.5B-Instruct-GGUF", llama.Adapter.Source.HuggingFace.Repo)
	assert.Equal(t, "~1GB", llama.Footprint.RAM)

	d := llama.Descriptor()
	assert.Equal(t, 5, d.SpeedRating)
	assert.Equal(t, 2, d.QualityRating)
	assert.Equal(t, 4096, d.ContextWindow())
	assert.InDelta(t, 0.6, d.Temperature(), 1e-9)
	assert.Equal(t, "You are a concise tutor.", d.SystemPrompt())

	assert.Equal(t, "gpt-4o-mini", gen.Backends[1].Adapter.Model)

	assert.Equal(t, map[string]string{"en-US": "piper_en_us"}, cfg.Speech.Languages)
	assert.Equal(t, []string{"piper_en_us", "system"}, ids(Descriptors(cfg.Speech.Backends)))
	assert.Equal(t, "/var/lib/polyglot/models", cfg.Storage.ModelsDir)
}

func TestLoadAndValidate_SchemaViolation(t *testing.T) {
	_, err := LoadAndValidate("testdata/invalid.yaml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unterminated"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("version: \"1\"\nmodels: {}\n"), "")
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	env := map[string]string{
		envvar.PolyglotServerHTTPPort: "8123",
		envvar.PolyglotServerGRPCPort: "not-a-port",
		envvar.PolyglotOllamaURL:      "http://ollama:11434",
		envvar.PolyglotOpenAIAPIKey:   "sk-test",
		envvar.PolyglotModelsPath:     "/models",
	}
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, 8123, cfg.Server.HTTPPort)
	assert.Equal(t, DefaultGRPCPort(), cfg.Server.GRPCPort)
	assert.Equal(t, "/models", cfg.Storage.ModelsDir)
	assert.Equal(t, "http://ollama:11434", cfg.Generation.Inventory.BaseURL)
	for _, b := range cfg.Generation.Backends {
		assert.Equal(t, "http://ollama:11434", b.Adapter.BaseURL)
	}

	cloud := cfg.Speech.Backends[len(cfg.Speech.Backends)-1]
	assert.Equal(t, "cloud", cloud.ID)
	assert.Equal(t, "sk-test", cloud.Adapter.APIKey)
	assert.Equal(t, "not-needed", cfg.Speech.Backends[1].Adapter.APIKey)
}

func TestActiveMode_UnknownFallsBackToBalanced(t *testing.T) {
	c := ConversationConfig{Mode: "turbo"}
	name, mode := c.ActiveMode()

	assert.Equal(t, ModeBalanced, name)
	assert.Equal(t, 100, mode.MaxTokens)
}

func TestDefaults_BuildValidCatalogs(t *testing.T) {
	cfg := Default()

	_, err := catalog.Build(catalog.KindGeneration, Descriptors(cfg.Generation.Backends))
	require.NoError(t, err)
	_, err = catalog.Build(catalog.KindSynthesis, Descriptors(cfg.Speech.Backends))
	require.NoError(t, err)
}

func TestEnsureModelsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	cfg := &Config{Storage: StorageConfig{ModelsDir: dir}}

	got, err := EnsureModelsDirectory(cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func ids(descs []catalog.Descriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.ID)
	}
	return out
}
