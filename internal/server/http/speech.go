package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/polyglot/internal/service"
)

type (
	SpeakRequestDTO struct {
		Text     string `json:"text" minLength:"1" maxLength:"4096"`
		Engine   string `json:"engine,omitempty" doc:"Force an engine"`
		Language string `json:"language,omitempty" doc:"Prefer the engine mapped to this language"`
		Voice    string `json:"voice,omitempty"`
	}

	SwitchEngineRequestDTO struct {
		Engine string `json:"engine" minLength:"1"`
	}

	SwitchEngineResponseDTO struct {
		Success       bool   `json:"success"`
		CurrentEngine string `json:"current_engine"`
	}
)

type (
	SpeakInput struct {
		Body SpeakRequestDTO
	}

	SpeakOutput struct {
		ContentType string `header:"Content-Type"`
		Engine      string `header:"X-TTS-Engine"`
		Voice       string `header:"X-TTS-Voice"`
		Language    string `header:"X-TTS-Language"`
		LatencyMS   string `header:"X-TTS-Latency-Ms"`
		Body        []byte
	}

	ListEnginesOutput struct {
		Body *service.EngineList
	}

	SwitchEngineInput struct {
		Body SwitchEngineRequestDTO
	}

	SwitchEngineOutput struct {
		Body SwitchEngineResponseDTO
	}
)

// SpeechHandler handles HTTP requests for TTS.
type SpeechHandler struct {
	service *service.Speech
}

// NewSpeechHandler creates a new SpeechHandler instance.
func NewSpeechHandler(api huma.API, service *service.Speech) *SpeechHandler {
	h := &SpeechHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "tts",
		Method:        http.MethodPost,
		Path:          "/tts",
		Summary:       "Synthesize speech as a WAV file",
		Tags:          []string{"tts"},
		DefaultStatus: http.StatusOK,
	}, h.handleSpeak)

	huma.Register(api, huma.Operation{
		OperationID:   "list-tts-engines",
		Method:        http.MethodGet,
		Path:          "/tts/engines",
		Summary:       "List speech engines",
		Tags:          []string{"tts"},
		DefaultStatus: http.StatusOK,
	}, h.handleEngines)

	huma.Register(api, huma.Operation{
		OperationID:   "switch-tts-engine",
		Method:        http.MethodPost,
		Path:          "/tts/switch",
		Summary:       "Make a speech engine active",
		Tags:          []string{"tts"},
		DefaultStatus: http.StatusOK,
	}, h.handleSwitch)

	return h
}

func (h *SpeechHandler) handleSpeak(ctx context.Context, input *SpeakInput) (*SpeakOutput, error) {
	resp, err := h.service.Speak(ctx, service.SpeakRequest{
		Text:     input.Body.Text,
		Engine:   input.Body.Engine,
		Language: input.Body.Language,
		Voice:    input.Body.Voice,
	})
	if err != nil {
		return nil, toHTTPError("speech synthesis failed", err)
	}

	res := resp.Result
	return &SpeakOutput{
		ContentType: "audio/wav",
		Engine:      res.Engine,
		Voice:       res.Voice,
		Language:    res.Language,
		LatencyMS:   strconv.FormatInt(res.Latency.Milliseconds(), 10),
		Body:        resp.WAV,
	}, nil
}

func (h *SpeechHandler) handleEngines(_ context.Context, _ *struct{}) (*ListEnginesOutput, error) {
	list, err := h.service.Engines()
	if err != nil {
		return nil, toHTTPError("failed to list engines", err)
	}
	return &ListEnginesOutput{Body: list}, nil
}

func (h *SpeechHandler) handleSwitch(_ context.Context, input *SwitchEngineInput) (*SwitchEngineOutput, error) {
	current, err := h.service.Switch(input.Body.Engine)
	if err != nil {
		return nil, toHTTPError("invalid or unavailable engine", err)
	}
	return &SwitchEngineOutput{Body: SwitchEngineResponseDTO{Success: true, CurrentEngine: current}}, nil
}
