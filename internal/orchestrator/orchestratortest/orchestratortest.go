// Package orchestratortest builds started orchestrators over fake adapters.
package orchestratortest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/backend/backendtest"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/logger"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
)

// Options shape the fake orchestrator.
type Options struct {
	Generation []catalog.Descriptor
	Speech     []catalog.Descriptor
	Languages  map[string]string

	GenerationDefault string
	SpeechDefault     string

	// Down lists ids whose probe fails.
	Down []string

	Recorder orchestrator.Recorder
}

// Fixture is a started orchestrator and the fakes behind it.
type Fixture struct {
	Orchestrator *orchestrator.Orchestrator
	Generators   map[string]*backendtest.Fake
	Synthesizers map[string]*backendtest.Fake
}

// Generation returns a small chat model table.
func Generation() []catalog.Descriptor {
	return []catalog.Descriptor{
		{ID: "fast", DisplayName: "Fast", Tags: []string{"quick chat", "basic practice"}, SpeedRating: 5, QualityRating: 2,
			Params: map[string]any{catalog.ParamSystemPrompt: "Be brief."}},
		{ID: "tutor", Tags: []string{"structured teaching", "grammar", "dynamic conversation"}, SpeedRating: 3, QualityRating: 4},
		{ID: "deep", Tags: []string{"premium conversations", "very long conversations", "long conversations"}, SpeedRating: 2, QualityRating: 5},
	}
}

// Speech returns a small speech engine table.
func Speech() []catalog.Descriptor {
	return []catalog.Descriptor{
		{ID: "system", Tags: []string{"system voices"}, SpeedRating: 5, QualityRating: 2,
			Params: map[string]any{catalog.ParamVoice: "en-us"}},
		{ID: "neural_pt", Tags: []string{"neural"}, SpeedRating: 3, QualityRating: 5,
			Params: map[string]any{catalog.ParamVoice: "pf_dora", catalog.ParamLanguage: "pt-BR"}},
	}
}

// New builds and starts an orchestrator. Zero options use Generation and
// Speech with "fast" and "system" as defaults.
func New(t testing.TB, o Options) *Fixture {
	t.Helper()

	if o.Generation == nil {
		o.Generation = Generation()
		if o.GenerationDefault == "" {
			o.GenerationDefault = "fast"
		}
	}
	if o.Speech == nil {
		o.Speech = Speech()
		if o.SpeechDefault == "" {
			o.SpeechDefault = "system"
		}
	}
	if o.Languages == nil {
		o.Languages = map[string]string{"pt-BR": "neural_pt"}
	}

	fx := &Fixture{
		Generators:   map[string]*backendtest.Fake{},
		Synthesizers: map[string]*backendtest.Fake{},
	}

	genCat, err := catalog.Build(catalog.KindGeneration, o.Generation)
	require.NoError(t, err)
	genReg := backend.NewRegistry[backend.Generator]()
	for _, id := range genCat.IDs() {
		f := backendtest.NewFake(id)
		if slices.Contains(o.Down, id) {
			f.Unavailable("down")
		}
		fx.Generators[id] = f
		require.NoError(t, genReg.Register(f))
	}

	speechCat, err := catalog.Build(catalog.KindSynthesis, o.Speech)
	require.NoError(t, err)
	speechReg := backend.NewRegistry[backend.Synthesizer]()
	for _, id := range speechCat.IDs() {
		f := backendtest.NewFake(id)
		f.Kind = catalog.KindSynthesis
		if slices.Contains(o.Down, id) {
			f.Unavailable("down")
		}
		fx.Synthesizers[id] = f
		require.NoError(t, speechReg.Register(f))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Generation: orchestrator.GenerationConfig{
			Catalog:      genCat,
			Registry:     genReg,
			Default:      o.GenerationDefault,
			ProbeTimeout: time.Second,
		},
		Speech: orchestrator.SpeechConfig{
			Catalog:      speechCat,
			Registry:     speechReg,
			Default:      o.SpeechDefault,
			ProbeTimeout: time.Second,
			Languages:    o.Languages,
		},
		Recorder: o.Recorder,
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)

	orch.Start(context.Background())
	t.Cleanup(func() { _ = orch.Close() })

	fx.Orchestrator = orch
	return fx
}

// Source returns a constant source for fx.
func (fx *Fixture) Source() func() *orchestrator.Orchestrator {
	return func() *orchestrator.Orchestrator { return fx.Orchestrator }
}
