package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/backend/backendtest"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/estimate"
	"github.com/ekisa-team/polyglot/internal/logger"
	"github.com/ekisa-team/polyglot/internal/selection"
)

type fixture struct {
	orch   *Orchestrator
	gens   map[string]*backendtest.Fake
	voices map[string]*backendtest.Fake
}

type fixtureOpts struct {
	genDefault    string
	speechDefault string
	genDown       []string
	speechDown    []string
	demote        bool
	estimator     *estimate.Estimator
}

func generationCatalog() []catalog.Descriptor {
	return []catalog.Descriptor{
		{ID: "A", Tags: []string{"quick chat", "role-play"}, SpeedRating: 5, QualityRating: 2, Params: map[string]any{"system_prompt": "Be brief."}},
		{ID: "B", Tags: []string{"quick chat", "grammar"}, SpeedRating: 4, QualityRating: 4},
		{ID: "C", Tags: []string{"structured teaching", "business english"}, SpeedRating: 3, QualityRating: 5},
		{ID: "D", Tags: []string{"very long conversations"}, SpeedRating: 2, QualityRating: 5},
	}
}

func speechCatalog() []catalog.Descriptor {
	return []catalog.Descriptor{
		{ID: "system", Tags: []string{"offline"}, SpeedRating: 5, QualityRating: 2, Params: map[string]any{"voice": "en-us"}},
		{ID: "kokoro_en_us_male", Tags: []string{"neural"}, SpeedRating: 3, QualityRating: 5, Params: map[string]any{"voice": "am_michael", "language": "en-US"}},
		{ID: "kokoro_pt_br", Tags: []string{"neural"}, SpeedRating: 3, QualityRating: 5, Params: map[string]any{"voice": "pf_dora", "language": "pt-BR"}},
	}
}

func contains(ids []string, id string) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()

	f := &fixture{gens: map[string]*backendtest.Fake{}, voices: map[string]*backendtest.Fake{}}

	genCat, err := catalog.Build(catalog.KindGeneration, generationCatalog())
	require.NoError(t, err)
	genReg := backend.NewRegistry[backend.Generator]()
	for _, id := range genCat.IDs() {
		fake := backendtest.NewFake(id)
		if contains(o.genDown, id) {
			fake.Unavailable("not installed")
		}
		f.gens[id] = fake
		require.NoError(t, genReg.Register(fake))
	}

	speechCat, err := catalog.Build(catalog.KindSynthesis, speechCatalog())
	require.NoError(t, err)
	speechReg := backend.NewRegistry[backend.Synthesizer]()
	for _, id := range speechCat.IDs() {
		fake := backendtest.NewFake(id)
		fake.Kind = catalog.KindSynthesis
		if contains(o.speechDown, id) {
			fake.Unavailable("server unreachable")
		}
		f.voices[id] = fake
		require.NoError(t, speechReg.Register(fake))
	}

	orch, err := New(Config{
		Generation: GenerationConfig{
			Catalog:      genCat,
			Registry:     genReg,
			Default:      o.genDefault,
			ProbeTimeout: time.Second,
			Estimator:    o.estimator,
		},
		Speech: SpeechConfig{
			Catalog:      speechCat,
			Registry:     speechReg,
			Default:      o.speechDefault,
			ProbeTimeout: time.Second,
			Languages: map[string]string{
				"en-US": "kokoro_en_us_male",
				"pt-BR": "kokoro_pt_br",
				"ja":    "kokoro_ja",
			},
		},
		DemoteOnFatal: o.demote,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	orch.Start(context.Background())
	f.orch = orch
	return f
}

func userSays(text string) []backend.Message {
	return []backend.Message{{Role: backend.RoleUser, Content: text}}
}

func TestStart_SeedsDefault(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "C", speechDefault: "system"})

	id, ok := f.orch.Generation.Active()
	assert.True(t, ok)
	assert.Equal(t, "C", id)

	id, _ = f.orch.Speech.Active()
	assert.Equal(t, "system", id)
}

func TestStart_FallsBackToFirstAvailable(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "C", genDown: []string{"A", "C"}, speechDefault: "system", speechDown: []string{"system"}})

	id, _ := f.orch.Generation.Active()
	assert.Equal(t, "B", id)
	assert.Equal(t, []string{"B", "D"}, f.orch.Generation.Available())

	id, _ = f.orch.Speech.Active()
	assert.Equal(t, "kokoro_en_us_male", id)
}

func TestDispatch_NoBackendAvailable(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		genDown:    []string{"A", "B", "C", "D"},
		speechDown: []string{"system", "kokoro_en_us_male", "kokoro_pt_br"},
	})

	_, ok := f.orch.Generation.Active()
	assert.False(t, ok)

	var res GenerateResult
	assert.NotPanics(t, func() {
		res = f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi"), AutoSelect: true})
	})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindNoBackendAvailable, res.ErrorKind)

	sres := f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "hi", Language: "pt-BR"})
	assert.False(t, sres.Success)
	assert.Equal(t, ErrorKindNoBackendAvailable, sres.ErrorKind)

	_, err := f.orch.Generation.Describe()
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestSwitchTo_RejectsUnknownAndUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A", genDown: []string{"D"}})

	err := f.orch.Generation.SwitchTo("ghost-model")
	assert.ErrorIs(t, err, ErrSwitchRejected)
	id, _ := f.orch.Generation.Active()
	assert.Equal(t, "A", id)

	err = f.orch.Generation.SwitchTo("D")
	assert.ErrorIs(t, err, ErrSwitchRejected)
	id, _ = f.orch.Generation.Active()
	assert.Equal(t, "A", id)
}

func TestSwitchTo_DescribeRoundTrip(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A", speechDefault: "system"})

	require.NoError(t, f.orch.Generation.SwitchTo("C"))
	d, err := f.orch.Generation.Describe()
	require.NoError(t, err)
	assert.Equal(t, "C", d.ID)

	require.NoError(t, f.orch.Speech.SwitchTo("kokoro_pt_br"))
	d, err = f.orch.Speech.Describe()
	require.NoError(t, err)
	assert.Equal(t, "kokoro_pt_br", d.ID)
}

func TestDispatch_OverrideRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})

	res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi"), Override: "ghost-model"})

	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindSwitchRejected, res.ErrorKind)
	assert.Contains(t, res.Error, "ghost-model")
	id, _ := f.orch.Generation.Active()
	assert.Equal(t, "A", id)
	for _, g := range f.gens {
		assert.Zero(t, g.Calls())
	}
}

func TestDispatch_Override(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})

	res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi"), Override: "B", AutoSelect: true})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "B", res.BackendID)
	assert.Equal(t, "B:hi", res.Text)
	assert.Empty(t, res.Category, "override skips classification")
}

func TestDispatch_SystemPrompt(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})

	var got []backend.Message
	f.gens["A"].OnGenerate(func(_ context.Context, msgs []backend.Message, _ backend.Options) (string, error) {
		got = msgs
		return "ok", nil
	})

	res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi"), SystemPrompt: true})
	require.True(t, res.Success)
	require.Len(t, got, 2)
	assert.Equal(t, backend.Message{Role: backend.RoleSystem, Content: "Be brief."}, got[0])

	own := []backend.Message{{Role: backend.RoleSystem, Content: "Custom."}, {Role: backend.RoleUser, Content: "hi"}}
	res = f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: own, SystemPrompt: true})
	require.True(t, res.Success)
	assert.Equal(t, own, got)
}

func TestDispatch_AutoSelect(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "D"})

	tests := []struct {
		name     string
		message  string
		history  int
		hint     selection.Category
		want     string
		category selection.Category
	}{
		{"casual picks fastest", "hi there", 0, "", "A", selection.Casual},
		{"educational picks best quality", "please explain the present perfect to me", 5, "", "C", selection.Educational},
		{"ultra", "ok", 25, "", "D", selection.Ultra},
		{"hint bypasses classifier", "hi", 0, selection.Business, "C", selection.Business},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{
				Messages:   userSays(tt.message),
				Signal:     selection.Signal{Message: tt.message, HistoryLength: tt.history},
				Category:   tt.hint,
				AutoSelect: true,
			})

			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.want, res.BackendID)
			assert.Equal(t, tt.category, res.Category)
			id, _ := f.orch.Generation.Active()
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestDispatch_AutoSelectConcurrentCategoriesMatchBackend(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})

	want := map[selection.Category]string{selection.Casual: "A", selection.Ultra: "D"}
	signals := []selection.Signal{
		{Message: "hi there"},
		{Message: "ok", HistoryLength: 25},
	}

	var wg sync.WaitGroup
	results := make([]GenerateResult, 40)
	for i := range results {
		sig := signals[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.orch.Generation.Dispatch(context.Background(), GenerateRequest{
				Messages:   userSays(sig.Message),
				Signal:     sig,
				AutoSelect: true,
			})
		}()
	}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.Success, res.Error)
		assert.Equal(t, want[res.Category], res.BackendID, "category %s", res.Category)
	}
}

func TestAutoSelect_NoCandidateKeepsActive(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A", genDown: []string{"D"}})

	// Ultra targets only D, which is unavailable.
	id, c := f.orch.Generation.AutoSelect(selection.Signal{Message: "ok", HistoryLength: 30}, "")
	assert.Equal(t, selection.Ultra, c)
	assert.Equal(t, "A", id)

	active, _ := f.orch.Generation.Active()
	assert.Equal(t, "A", active)
}

func TestAutoSelect_EmptyAvailability(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDown: []string{"A", "B", "C", "D"}})

	var id string
	assert.NotPanics(t, func() {
		id, _ = f.orch.Generation.AutoSelect(selection.Signal{Message: "hi"}, "")
	})
	assert.Empty(t, id)
}

func TestAutoSelect_StaysInsideAvailability(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "B", genDown: []string{"A", "C"}})

	signals := []selection.Signal{
		{Message: "hi"},
		{Message: "explain grammar please to me now", HistoryLength: 4},
		{Message: "business plan review for my company today", HistoryLength: 4},
		{Message: "ok", HistoryLength: 15},
		{Message: "ok", HistoryLength: 40},
	}
	for _, sig := range signals {
		id, _ := f.orch.Generation.AutoSelect(sig, "")
		assert.True(t, f.orch.Generation.IsAvailable(id), "active %q outside availability", id)
	}
}

func TestDispatch_BackendFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})
	f.gens["A"].OnGenerate(func(context.Context, []backend.Message, backend.Options) (string, error) {
		return "", errors.New("model exploded")
	})

	res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi")})

	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindBackendCallFailed, res.ErrorKind)
	assert.Equal(t, "A", res.BackendID)
	assert.Contains(t, res.Error, "model exploded")

	// No retry on another backend, and no demotion without the flag.
	for id, g := range f.gens {
		if id != "A" {
			assert.Zero(t, g.Calls(), id)
		}
	}
	assert.True(t, f.orch.Generation.IsAvailable("A"))
}

func TestDispatch_BackendPanic(t *testing.T) {
	f := newFixture(t, fixtureOpts{speechDefault: "system"})
	f.voices["system"].OnSynthesize(func(context.Context, string, string) (*backend.Audio, error) {
		panic("segfault in driver")
	})

	var res SynthesizeResult
	assert.NotPanics(t, func() {
		res = f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "hello"})
	})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindBackendCallFailed, res.ErrorKind)
	assert.Equal(t, "system", res.Engine)
	assert.Zero(t, f.voices["kokoro_en_us_male"].Calls())
}

func TestDispatch_DemotesOnFatal(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A", demote: true})
	f.gens["A"].OnGenerate(func(context.Context, []backend.Message, backend.Options) (string, error) {
		return "", fmt.Errorf("post: %w", backend.ErrUnreachable)
	})

	res := f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("hi")})
	assert.Equal(t, ErrorKindBackendCallFailed, res.ErrorKind)

	assert.False(t, f.orch.Generation.IsAvailable("A"))
	assert.Contains(t, f.orch.Generation.Reason("A"), "unreachable")
	id, _ := f.orch.Generation.Active()
	assert.Equal(t, "B", id)

	// The next call goes to the reseeded backend.
	res = f.orch.Generation.Dispatch(context.Background(), GenerateRequest{Messages: userSays("again")})
	assert.True(t, res.Success)
	assert.Equal(t, "B", res.BackendID)
}

func TestSpeech_LanguageUnavailableKeepsEngine(t *testing.T) {
	f := newFixture(t, fixtureOpts{speechDefault: "system", speechDown: []string{"kokoro_pt_br"}})

	res := f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "Olá", Language: "pt-BR"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "system", res.Engine)
	assert.Equal(t, "pt-BR", res.Language)
	assert.Equal(t, 1, f.voices["system"].Calls())
	id, _ := f.orch.Speech.Active()
	assert.Equal(t, "system", id)
}

func TestSpeech_LanguageSwitchesEngine(t *testing.T) {
	f := newFixture(t, fixtureOpts{speechDefault: "system"})

	res := f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "Olá", Language: "pt-BR"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "kokoro_pt_br", res.Engine)
	assert.Equal(t, "pf_dora", res.Voice)
	assert.Equal(t, "kokoro_pt_br", res.Info.ID)
	assert.NotNil(t, res.Audio)
}

func TestSpeech_UnmappedEngineIsIgnored(t *testing.T) {
	f := newFixture(t, fixtureOpts{speechDefault: "system"})

	res := f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "konnichiwa", Language: "ja"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "system", res.Engine)
}

func TestSpeech_EngineOverride(t *testing.T) {
	f := newFixture(t, fixtureOpts{speechDefault: "system", speechDown: []string{"kokoro_pt_br"}})

	res := f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "hi", Engine: "kokoro_pt_br"})
	assert.Equal(t, ErrorKindSwitchRejected, res.ErrorKind)

	res = f.orch.Speech.Dispatch(context.Background(), SynthesizeRequest{Text: "hi", Engine: "kokoro_en_us_male", Voice: "am_adam"})
	require.True(t, res.Success)
	assert.Equal(t, "am_adam", f.voices["kokoro_en_us_male"].LastVoice())
	assert.Equal(t, "am_adam", res.Voice)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A"})

	var bDown atomic.Bool
	f.gens["B"].OnProbe(func(context.Context) backend.ProbeResult {
		if bDown.Load() {
			return backend.Unavailable("gone")
		}
		return backend.Ready()
	})

	require.NoError(t, f.orch.Generation.SwitchTo("B"))

	f.orch.Generation.Refresh(context.Background())
	id, _ := f.orch.Generation.Active()
	assert.Equal(t, "B", id, "still available, so kept")

	bDown.Store(true)
	f.orch.Generation.Refresh(context.Background())
	id, _ = f.orch.Generation.Active()
	assert.Equal(t, "A", id, "reseeded to the default")
	assert.False(t, f.orch.Generation.IsAvailable("B"))
}

func TestInfos(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		genDefault: "B",
		genDown:    []string{"D"},
		estimator:  estimate.New(estimate.ModeSkip, 0, logger.Discard()),
	})

	infos := f.orch.Generation.Infos()
	require.Len(t, infos, 4)

	byID := map[string]catalog.Info{}
	for _, in := range infos {
		byID[in.ID] = in
	}

	assert.True(t, byID["B"].Active)
	assert.False(t, byID["A"].Active)
	assert.False(t, byID["D"].Available)
	assert.Nil(t, byID["D"].Performance)
	require.NotNil(t, byID["A"].Performance)
	assert.InDelta(t, 10.0, byID["A"].Performance.Throughput, 1e-9)
	assert.True(t, byID["A"].Performance.Estimated)

	recs := f.orch.Generation.Recommendations()
	assert.Equal(t, []string{"A", "B"}, recs[selection.Casual])
}

func TestNew_Validation(t *testing.T) {
	genCat := catalog.MustBuild(catalog.KindGeneration, generationCatalog())
	speechCat := catalog.MustBuild(catalog.KindSynthesis, speechCatalog())

	_, err := New(Config{
		Generation: GenerationConfig{Catalog: genCat, Registry: backend.NewRegistry[backend.Generator](), Default: "nope"},
		Speech:     SpeechConfig{Catalog: speechCat, Registry: backend.NewRegistry[backend.Synthesizer]()},
		Logger:     logger.Discard(),
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "nope")

	_, err = New(Config{
		Generation: GenerationConfig{Catalog: speechCat, Registry: backend.NewRegistry[backend.Generator]()},
		Logger:     logger.Discard(),
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConcurrentDispatchAndSwitch(t *testing.T) {
	f := newFixture(t, fixtureOpts{genDefault: "A", speechDefault: "system", genDown: []string{"D"}})
	ctx := context.Background()

	messages := []string{"hi", "please explain this grammar point to me", "business meeting preparation for tomorrow afternoon"}
	targets := []string{"A", "B", "C", "D", "ghost"}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			msg := messages[i%len(messages)]
			res := f.orch.Generation.Dispatch(ctx, GenerateRequest{
				Messages:   userSays(msg),
				Signal:     selection.Signal{Message: msg, HistoryLength: i % 5},
				AutoSelect: true,
			})
			assert.True(t, res.Success, res.Error)
			assert.NotEqual(t, "D", res.BackendID)
		}()
		go func() {
			defer wg.Done()
			_ = f.orch.Generation.SwitchTo(targets[i%len(targets)])
		}()
		go func() {
			defer wg.Done()
			res := f.orch.Speech.Dispatch(ctx, SynthesizeRequest{Text: "hello", Language: []string{"en-US", "pt-BR"}[i%2]})
			assert.True(t, res.Success, res.Error)
		}()
	}
	wg.Wait()

	id, ok := f.orch.Generation.Active()
	require.True(t, ok)
	assert.True(t, f.orch.Generation.IsAvailable(id))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKindNone, KindOf(nil))
	assert.Equal(t, ErrorKindSwitchRejected, KindOf(fmt.Errorf("x: %w", ErrSwitchRejected)))
	assert.Equal(t, ErrorKindNoBackendAvailable, KindOf(ErrNoBackendAvailable))
	assert.Equal(t, ErrorKindBackendCallFailed, KindOf(&backend.CallError{}))
}
