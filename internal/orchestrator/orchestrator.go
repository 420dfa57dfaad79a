// Package orchestrator keeps one active backend per capability, switches
// between backends on request or by conversation category, and dispatches
// calls to the active backend.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/estimate"
	"github.com/ekisa-team/polyglot/internal/probe"
	"github.com/ekisa-team/polyglot/internal/selection"
)

// GenerationConfig wires the text-generation side.
type GenerationConfig struct {
	Catalog      *catalog.Catalog
	Registry     *backend.Registry[backend.Generator]
	Default      string
	Inventory    probe.Inventory
	ProbeTimeout time.Duration
	Estimator    *estimate.Estimator
	Classifier   *selection.Classifier
}

// SpeechConfig wires the speech-synthesis side.
type SpeechConfig struct {
	Catalog      *catalog.Catalog
	Registry     *backend.Registry[backend.Synthesizer]
	Default      string
	ProbeTimeout time.Duration
	Languages    map[string]string
}

// Config configures an Orchestrator.
type Config struct {
	Generation GenerationConfig
	Speech     SpeechConfig

	// DemoteOnFatal removes a backend from the availability set when a call
	// fails in a way that means the backend is gone.
	DemoteOnFatal bool

	Recorder Recorder
	Logger   *slog.Logger
}

// Orchestrator owns the generation and speech managers.
type Orchestrator struct {
	Generation *Generation
	Speech     *Speech

	logger *slog.Logger
}

// New validates cfg and builds an orchestrator. Nothing is probed until
// Start.
func New(cfg Config) (*Orchestrator, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	gc := cfg.Generation
	genOpts := []probe.Option[backend.Generator]{
		probe.WithTimeout[backend.Generator](gc.ProbeTimeout),
		probe.WithObserver[backend.Generator](rec),
		probe.WithLogger[backend.Generator](logger),
	}
	if gc.Inventory != nil {
		genOpts = append(genOpts, probe.WithInventory[backend.Generator](gc.Inventory))
	}
	classifier := gc.Classifier
	if classifier == nil {
		classifier = selection.DefaultClassifier()
	}

	gen := &Generation{
		manager: newManager(gc.Catalog, gc.Registry,
			probe.NewProber(gc.Catalog, gc.Registry, genOpts...),
			gc.Default, rec, logger),
		classifier:    classifier,
		estimator:     gc.Estimator,
		perf:          estimate.NewTable(),
		demoteOnFatal: cfg.DemoteOnFatal,
	}

	sc := cfg.Speech
	languages := maps.Clone(sc.Languages)
	if languages == nil {
		languages = map[string]string{}
	}
	for lang, id := range languages {
		if !sc.Catalog.Has(id) {
			logger.Warn("Language mapped to unknown speech engine", "language", lang, "engine", id)
		}
	}

	speech := &Speech{
		manager: newManager(sc.Catalog, sc.Registry,
			probe.NewProber(sc.Catalog, sc.Registry,
				probe.WithTimeout[backend.Synthesizer](sc.ProbeTimeout),
				probe.WithObserver[backend.Synthesizer](rec),
				probe.WithLogger[backend.Synthesizer](logger)),
			sc.Default, rec, logger),
		languages:     languages,
		demoteOnFatal: cfg.DemoteOnFatal,
	}

	return &Orchestrator{Generation: gen, Speech: speech, logger: logger}, nil
}

func validate(cfg Config) error {
	var errs []error

	check := func(cat *catalog.Catalog, kind catalog.Kind, def string, hasRegistry bool) {
		if cat == nil {
			errs = append(errs, fmt.Errorf("%s catalog is required", kind))
			return
		}
		if cat.Kind() != kind {
			errs = append(errs, fmt.Errorf("%s catalog has kind %s", kind, cat.Kind()))
		}
		if !hasRegistry {
			errs = append(errs, fmt.Errorf("%s registry is required", kind))
		}
		if def != "" && !cat.Has(def) {
			errs = append(errs, fmt.Errorf("default %s backend %q is not in the catalog", kind, def))
		}
	}

	check(cfg.Generation.Catalog, catalog.KindGeneration, cfg.Generation.Default, cfg.Generation.Registry != nil)
	check(cfg.Speech.Catalog, catalog.KindSynthesis, cfg.Speech.Default, cfg.Speech.Registry != nil)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Start probes both capabilities concurrently and seeds their active
// backends. Unavailable backends never make Start fail.
func (o *Orchestrator) Start(ctx context.Context) {
	var g errgroup.Group

	g.Go(func() error {
		o.Generation.Start(ctx)
		return nil
	})
	g.Go(func() error {
		o.Speech.Start(ctx)
		return nil
	})

	_ = g.Wait()

	genActive, _ := o.Generation.Active()
	speechActive, _ := o.Speech.Active()
	o.logger.Info("Orchestrator started",
		"generation_active", genActive,
		"generation_available", len(o.Generation.Available()),
		"speech_active", speechActive,
		"speech_available", len(o.Speech.Available()))
}

// Close closes every adapter.
func (o *Orchestrator) Close() error {
	return errors.Join(o.Generation.Close(), o.Speech.Close())
}
