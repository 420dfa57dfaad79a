package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/backend/espeak"
	"github.com/ekisa-team/polyglot/internal/backend/llama"
	"github.com/ekisa-team/polyglot/internal/backend/ollama"
	"github.com/ekisa-team/polyglot/internal/backend/openai"
	"github.com/ekisa-team/polyglot/internal/backend/piper"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/config/source"
	"github.com/ekisa-team/polyglot/internal/estimate"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
	"github.com/ekisa-team/polyglot/internal/probe"
)

// builder turns one config snapshot into an orchestrator.
type builder struct {
	cfg       *config.Config
	modelsDir string
	servers   *backend.ServerManager
	runner    backend.CommandRunner
	recorder  orchestrator.Recorder
	logger    *slog.Logger

	// ollama clients are shared per base URL.
	ollama map[string]*ollama.Client
	// managed lists the servers the built adapters may start.
	managed []backend.ServerConfig
}

func (b *builder) build() (*orchestrator.Orchestrator, error) {
	gen := b.cfg.Generation
	genCat, err := catalog.Build(catalog.KindGeneration, config.Descriptors(gen.Backends))
	if err != nil {
		return nil, fmt.Errorf("generation catalog: %w", err)
	}
	genReg := backend.NewRegistry[backend.Generator]()
	for _, bc := range gen.Backends {
		g, err := b.generator(bc)
		if err != nil {
			_ = genReg.Close()
			return nil, fmt.Errorf("generation backend %s: %w", bc.ID, err)
		}
		if err := genReg.Register(g); err != nil {
			_ = genReg.Close()
			return nil, err
		}
	}

	sp := b.cfg.Speech
	speechCat, err := catalog.Build(catalog.KindSynthesis, config.Descriptors(sp.Backends))
	if err != nil {
		_ = genReg.Close()
		return nil, fmt.Errorf("speech catalog: %w", err)
	}
	speechReg := backend.NewRegistry[backend.Synthesizer]()
	for _, bc := range sp.Backends {
		s, err := b.synthesizer(bc)
		if err == nil {
			err = speechReg.Register(s)
		}
		if err != nil {
			_ = genReg.Close()
			_ = speechReg.Close()
			return nil, fmt.Errorf("speech backend %s: %w", bc.ID, err)
		}
	}

	mode, err := estimate.ParseMode(gen.Benchmark.Mode)
	if err != nil {
		_ = genReg.Close()
		_ = speechReg.Close()
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Generation: orchestrator.GenerationConfig{
			Catalog:      genCat,
			Registry:     genReg,
			Default:      gen.Default,
			Inventory:    b.inventory(gen.Inventory),
			ProbeTimeout: gen.ProbeTimeout,
			Estimator:    estimate.New(mode, gen.Benchmark.Timeout, b.logger),
		},
		Speech: orchestrator.SpeechConfig{
			Catalog:      speechCat,
			Registry:     speechReg,
			Default:      sp.Default,
			ProbeTimeout: sp.ProbeTimeout,
			Languages:    sp.Languages,
		},
		DemoteOnFatal: gen.DemoteOnFatal,
		Recorder:      b.recorder,
		Logger:        b.logger,
	})
	if err != nil {
		_ = genReg.Close()
		_ = speechReg.Close()
		return nil, err
	}

	return orch, nil
}

func (b *builder) generator(bc config.BackendConfig) (backend.Generator, error) {
	desc := bc.Descriptor()
	a := bc.Adapter

	switch a.Type {
	case config.AdapterOllama:
		return ollama.NewGenerator(desc, a.Model, b.ollamaClient(a.BaseURL, a.Timeout)), nil
	case config.AdapterOpenAI:
		return openai.NewGenerator(desc, b.openaiConn(bc)), nil
	case config.AdapterLlama:
		return llama.NewBackend(desc, llama.Config{
			BinPath:   a.BinPath,
			ModelPath: a.ModelPath,
			Timeout:   a.Timeout,
			Fetcher:   b.fetcher(bc),
			Runner:    b.runner,
		}), nil
	}
	return nil, fmt.Errorf("%w: %s cannot generate text", ErrUnsupportedAdapter, a.Type)
}

func (b *builder) synthesizer(bc config.BackendConfig) (backend.Synthesizer, error) {
	desc := bc.Descriptor()
	a := bc.Adapter

	switch a.Type {
	case config.AdapterOpenAI:
		return openai.NewSynthesizer(desc, b.openaiConn(bc)), nil
	case config.AdapterPiper:
		return piper.NewBackend(desc, piper.Config{
			BinPath:   a.BinPath,
			ModelPath: a.ModelPath,
			Timeout:   a.Timeout,
			Fetcher:   b.fetcher(bc),
			Runner:    b.runner,
		}), nil
	case config.AdapterEspeak:
		return espeak.NewBackend(desc, espeak.Config{
			BinPath: a.BinPath,
			Timeout: a.Timeout,
			Runner:  b.runner,
		}), nil
	}
	return nil, fmt.Errorf("%w: %s cannot synthesize speech", ErrUnsupportedAdapter, a.Type)
}

func (b *builder) ollamaClient(baseURL string, timeout time.Duration) *ollama.Client {
	key := baseURL + "|" + timeout.String()
	if c, ok := b.ollama[key]; ok {
		return c
	}
	c := ollama.NewClient(baseURL, timeout)
	b.ollama[key] = c
	return c
}

func (b *builder) openaiConn(bc config.BackendConfig) *openai.Conn {
	a := bc.Adapter
	cfg := openai.Config{
		BaseURL: a.BaseURL,
		APIKey:  a.APIKey,
		Model:   a.Model,
		Timeout: a.Timeout,
	}

	if s := a.Server; s != nil {
		sc := backend.ServerConfig{
			Name:         s.Name,
			BinPath:      s.BinPath,
			Args:         s.Args,
			Port:         s.Port,
			HealthURL:    s.HealthURL,
			ReadyTimeout: s.ReadyTimeout,
			Env:          s.Env,
		}
		cfg.HealthURL = s.HealthURL
		cfg.Server = &sc
		b.managed = append(b.managed, sc)
	}

	return openai.NewConn(cfg, b.servers)
}

// fetcher returns a downloader for the backend's model source, or nil.
func (b *builder) fetcher(bc config.BackendConfig) backend.ModelFetcher {
	src := bc.Adapter.Source
	if src == nil || src.HuggingFace == nil {
		return nil
	}

	f := source.NewHuggingFaceFetcher(*src.HuggingFace, filepath.Join(b.modelsDir, bc.ID))
	if b.runner != nil {
		f.Runner = b.runner
	}
	f.Logger = b.logger
	return f
}

func (b *builder) inventory(cfg config.InventoryConfig) probe.Inventory {
	switch cfg.Type {
	case config.InventoryOllama:
		return ollama.NewInventory(b.ollamaClient(cfg.BaseURL, cfg.Timeout))
	case config.InventoryOpenAI:
		return openai.NewInventory(openai.NewConn(openai.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, nil))
	}
	return nil
}
