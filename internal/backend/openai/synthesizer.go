package openai

import (
	"context"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/mapsafe"
)

// Synthesizer renders speech through an /audio/speech endpoint. Kokoro
// voices and the OpenAI cloud voices both go through it.
type Synthesizer struct {
	backend.Health

	desc  catalog.Descriptor
	model string
	conn  *Conn
}

var _ backend.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer creates a synthesizer. The model defaults to tts-1.
func NewSynthesizer(desc catalog.Descriptor, conn *Conn) *Synthesizer {
	model := conn.cfg.Model
	if model == "" {
		model = string(goopenai.TTSModel1)
	}
	return &Synthesizer{desc: desc, model: model, conn: conn}
}

// ID returns the catalog id.
func (s *Synthesizer) ID() string {
	return s.desc.ID
}

// Probe checks the endpoint.
func (s *Synthesizer) Probe(ctx context.Context) backend.ProbeResult {
	if err := s.conn.Check(ctx); err != nil {
		return s.Record(backend.Unavailable(err.Error()))
	}
	return s.Record(backend.Ready())
}

// Synthesize requests WAV audio for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceHint string) (*backend.Audio, error) {
	voice := voiceHint
	if voice == "" {
		voice = s.desc.Voice()
	}

	req := goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(s.model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormatWav,
		Speed:          mapsafe.Get(s.desc.Params, "speed", 1.0),
	}

	resp, err := s.conn.client.CreateSpeech(ctx, req)
	if err != nil {
		s.Observe(err)
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	audio, err := backend.DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	s.Observe(nil)
	return audio, nil
}

// Describe reports the voice and endpoint.
func (s *Synthesizer) Describe() backend.Description {
	healthy, reason := s.Status()
	return backend.Description{
		ID:          s.desc.ID,
		DisplayName: s.desc.Name(),
		Kind:        catalog.KindSynthesis,
		Provider:    "openai",
		Features:    []string{"wav"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"model":    s.model,
			"voice":    s.desc.Voice(),
			"language": s.desc.Language(),
			"base_url": s.conn.BaseURL(),
		},
	}
}

// Close stops the managed server, if any.
func (s *Synthesizer) Close() error {
	return s.conn.Close()
}
