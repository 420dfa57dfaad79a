package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
)

// SpeakRequest is one text-to-speech request.
type SpeakRequest struct {
	Text     string
	Engine   string
	Language string
	Voice    string
}

// SpeakResponse holds the synthesized audio as a WAV file.
type SpeakResponse struct {
	Result orchestrator.SynthesizeResult
	WAV    []byte
}

// EngineList is the speech engine overview.
type EngineList struct {
	Current   string            `json:"current_engine"`
	Default   string            `json:"default_engine,omitempty"`
	Engines   []catalog.Info    `json:"engines"`
	Languages map[string]string `json:"languages"`
}

// Speech serves text-to-speech requests.
type Speech struct {
	source        Source
	defaultEngine func() string
}

// NewSpeech creates a speech service. defaultEngine reports the configured
// default engine and may be nil.
func NewSpeech(source Source, defaultEngine func() string) *Speech {
	if defaultEngine == nil {
		defaultEngine = func() string { return "" }
	}
	return &Speech{source: source, defaultEngine: defaultEngine}
}

// Speak synthesizes req.Text.
func (s *Speech) Speak(ctx context.Context, req SpeakRequest) (*SpeakResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}

	orch := s.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	res := orch.Speech.Dispatch(ctx, orchestrator.SynthesizeRequest{
		Text:     req.Text,
		Engine:   req.Engine,
		Language: req.Language,
		Voice:    req.Voice,
	})
	if !res.Success {
		return nil, resultError(res.ErrorKind, res.Error)
	}

	wav, err := res.Audio.WAV()
	if err != nil {
		return nil, fmt.Errorf("encode audio from %s: %w", res.Engine, err)
	}

	return &SpeakResponse{Result: res, WAV: wav}, nil
}

// Engines lists every speech engine.
func (s *Speech) Engines() (*EngineList, error) {
	orch := s.source()
	if orch == nil {
		return nil, ErrNotInitialized
	}

	current, _ := orch.Speech.Active()
	return &EngineList{
		Current:   current,
		Default:   s.defaultEngine(),
		Engines:   orch.Speech.Infos(),
		Languages: orch.Speech.Languages(),
	}, nil
}

// Switch makes engine the active speech engine.
func (s *Speech) Switch(engine string) (string, error) {
	orch := s.source()
	if orch == nil {
		return "", ErrNotInitialized
	}

	if err := orch.Speech.SwitchTo(engine); err != nil {
		return "", fmt.Errorf("switch engine: %w", err)
	}
	current, _ := orch.Speech.Active()
	return current, nil
}
