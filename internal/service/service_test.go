package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/logger"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
	"github.com/ekisa-team/polyglot/internal/orchestrator/orchestratortest"
)

func newChat(fx *orchestratortest.Fixture, mode string) *Chat {
	return NewChat(fx.Source(), config.ConversationConfig{Mode: mode}, logger.Discard())
}

func TestChat_SendBuildsContext(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	chat := NewChat(fx.Source(), config.ConversationConfig{
		Mode: "fixed",
		Modes: map[string]config.ModeConfig{
			"fixed": {MaxTokens: 50, Temperature: 0.7, TopK: 40, TopP: 0.9, ContextLimit: 5},
		},
	}, logger.Discard())

	var seen [][]backend.Message
	var opts backend.Options
	fx.Generators["fast"].OnGenerate(func(_ context.Context, msgs []backend.Message, o backend.Options) (string, error) {
		seen = append(seen, msgs)
		opts = o
		return fmt.Sprintf("reply %d", len(seen)), nil
	})

	for i := range 7 {
		resp, err := chat.Send(context.Background(), ChatRequest{Message: fmt.Sprintf("hi %d", i)})
		require.NoError(t, err)
		assert.Equal(t, "fast", resp.Stats.ModelUsed)
		assert.Equal(t, i+1, resp.Stats.ConversationLength)
		assert.Equal(t, 2, resp.Stats.TokensGenerated)
		require.NotNil(t, resp.ModelInfo)
		assert.Equal(t, "fast", resp.ModelInfo.ID)
		assert.True(t, resp.ModelInfo.Active)
	}

	last := seen[len(seen)-1]
	// system prompt + 5 prior turns + current message
	require.Len(t, last, 1+2*5+1)
	assert.Equal(t, backend.Message{Role: backend.RoleSystem, Content: "Be brief."}, last[0])
	assert.Equal(t, backend.Message{Role: backend.RoleUser, Content: "hi 1"}, last[1])
	assert.Equal(t, backend.Message{Role: backend.RoleAssistant, Content: "reply 2"}, last[2])
	assert.Equal(t, backend.Message{Role: backend.RoleUser, Content: "hi 6"}, last[len(last)-1])

	assert.Equal(t, 50, opts.MaxTokens)
	assert.InDelta(t, 0.7, opts.Temperature, 1e-9)
	assert.Equal(t, 40, opts.TopK)
}

func TestChat_AutoSwitchUsesCategory(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	chat := newChat(fx, config.ModeBalanced)

	resp, err := chat.Send(context.Background(), ChatRequest{Message: "Can you explain the grammar of this sentence please?"})
	require.NoError(t, err)
	assert.Equal(t, "tutor", resp.Stats.ModelUsed)
	assert.Equal(t, "educational", resp.Stats.Category)

	resp, err = chat.Send(context.Background(), ChatRequest{Message: "ok", Category: "premium"})
	require.NoError(t, err)
	assert.Equal(t, "deep", resp.Stats.ModelUsed)
}

func TestChat_ManualModeHonoursPreference(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{Down: []string{"deep"}})
	chat := newChat(fx, config.ModeQuality)

	resp, err := chat.Send(context.Background(), ChatRequest{Message: "hello", ModelPreference: "tutor"})
	require.NoError(t, err)
	assert.Equal(t, "tutor", resp.Stats.ModelUsed)

	_, err = chat.Send(context.Background(), ChatRequest{Message: "hello", ModelPreference: "deep"})
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrSwitchRejected)
	assert.Equal(t, 1, chat.History().Len())
}

func TestChat_Failures(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	chat := newChat(fx, config.ModeBalanced)

	_, err := chat.Send(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	fx.Generators["fast"].OnGenerate(func(context.Context, []backend.Message, backend.Options) (string, error) {
		return "", errors.New("model crashed")
	})
	_, err = chat.Send(context.Background(), ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, backend.ErrBackendCallFailed)
	assert.Zero(t, chat.History().Len())

	empty := NewChat(func() *orchestrator.Orchestrator { return nil }, config.ConversationConfig{}, logger.Discard())
	_, err = empty.Send(context.Background(), ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestChat_NoBackendAvailable(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{Down: []string{"fast", "tutor", "deep"}})
	chat := newChat(fx, config.ModeBalanced)

	_, err := chat.Send(context.Background(), ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, orchestrator.ErrNoBackendAvailable)
}

func TestChat_Modes(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	chat := newChat(fx, "unknown")

	name, _ := chat.Mode()
	assert.Equal(t, config.ModeBalanced, name)
	assert.Equal(t, []string{"balanced", "quality", "speed"}, chat.Modes())

	m, err := chat.SetMode(config.ModeQuality)
	require.NoError(t, err)
	assert.Equal(t, 20, m.ContextLimit)
	assert.False(t, m.AutoSwitch)

	_, err = chat.SetMode("turbo")
	assert.ErrorIs(t, err, ErrUnknownMode)
	name, _ = chat.Mode()
	assert.Equal(t, config.ModeQuality, name)

	chat.Configure(config.ConversationConfig{
		Mode:  "custom",
		Modes: map[string]config.ModeConfig{"custom": {MaxTokens: 10, ContextLimit: 1}},
	})
	name, m = chat.Mode()
	assert.Equal(t, "custom", name)
	assert.Equal(t, 10, m.MaxTokens)
}

func TestHistory_Trims(t *testing.T) {
	h := NewHistory()
	for i := range historyMax + 1 {
		h.Append(Turn{Input: fmt.Sprint(i)})
	}

	assert.Equal(t, historyKeep, h.Len())
	assert.Equal(t, fmt.Sprint(historyMax), h.Recent(1)[0].Input)
	assert.Nil(t, h.Recent(0))
	assert.Len(t, h.Recent(100), historyKeep)

	h.Clear()
	assert.Zero(t, h.Len())
}

func TestModels(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{Down: []string{"deep"}})
	models := NewModels(fx.Source())

	list, err := models.List()
	require.NoError(t, err)
	assert.Equal(t, "fast", list.Current)
	assert.Len(t, list.Models, 3)
	assert.Equal(t, []string{"fast"}, list.Recommendations["casual"])
	assert.Equal(t, []string{"tutor"}, list.Recommendations["educational"])
	assert.Contains(t, list.Recommendations, "advanced")

	info, err := models.Switch("tutor")
	require.NoError(t, err)
	assert.Equal(t, "tutor", info.ID)

	_, err = models.Switch("deep")
	assert.ErrorIs(t, err, orchestrator.ErrSwitchRejected)

	fx.Generators["deep"].OnProbe(func(context.Context) backend.ProbeResult { return backend.Ready() })
	fx.Generators["tutor"].Unavailable("gone")

	res, err := models.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "deep"}, res.Available)
	assert.Equal(t, "fast", res.Current)
	assert.Contains(t, res.Failures, "tutor")
}

func TestSpeech(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	speech := NewSpeech(fx.Source(), func() string { return "system" })

	resp, err := speech.Speak(context.Background(), SpeakRequest{Text: "Olá", Language: "pt-BR"})
	require.NoError(t, err)
	assert.Equal(t, "neural_pt", resp.Result.Engine)
	assert.Equal(t, "pf_dora", resp.Result.Voice)

	a, err := backend.DecodeWAV(resp.WAV)
	require.NoError(t, err)
	assert.Equal(t, 16000, a.SampleRate)

	engines, err := speech.Engines()
	require.NoError(t, err)
	assert.Equal(t, "neural_pt", engines.Current)
	assert.Equal(t, "system", engines.Default)
	assert.Len(t, engines.Engines, 2)
	assert.Equal(t, "neural_pt", engines.Languages["pt-BR"])

	current, err := speech.Switch("system")
	require.NoError(t, err)
	assert.Equal(t, "system", current)

	_, err = speech.Switch("nope")
	assert.ErrorIs(t, err, orchestrator.ErrSwitchRejected)

	_, err = speech.Speak(context.Background(), SpeakRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSpeech_EngineFailure(t *testing.T) {
	fx := orchestratortest.New(t, orchestratortest.Options{})
	fx.Synthesizers["system"].OnSynthesize(func(context.Context, string, string) (*backend.Audio, error) {
		return nil, backend.ErrUnreachable
	})
	speech := NewSpeech(fx.Source(), nil)

	_, err := speech.Speak(context.Background(), SpeakRequest{Text: "hello"})
	assert.ErrorIs(t, err, backend.ErrBackendCallFailed)
}
