package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/service"
)

type (
	HealthBody struct {
		Status           string   `json:"status" enum:"healthy,degraded"`
		CurrentModel     string   `json:"current_model"`
		AvailableModels  []string `json:"available_models"`
		CurrentEngine    string   `json:"current_engine"`
		AvailableEngines []string `json:"available_engines"`
		ConversationMode string   `json:"conversation_mode"`
	}

	HealthOutput struct {
		Body HealthBody
	}
)

// HealthHandler reports whether both capabilities have an active backend.
type HealthHandler struct {
	models *service.Models
	speech *service.Speech
	chat   *service.Chat
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(api huma.API, models *service.Models, speech *service.Speech, chat *service.Chat) *HealthHandler {
	h := &HealthHandler{models: models, speech: speech, chat: chat}

	huma.Register(api, huma.Operation{
		OperationID:   "health",
		Method:        http.MethodGet,
		Path:          "/health",
		Summary:       "Report service health",
		Tags:          []string{"system"},
		DefaultStatus: http.StatusOK,
	}, h.handleHealth)

	return h
}

func (h *HealthHandler) handleHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	body := HealthBody{Status: "degraded", AvailableModels: []string{}, AvailableEngines: []string{}}

	if list, err := h.models.List(); err == nil {
		body.CurrentModel = list.Current
		body.AvailableModels = availableIDs(list.Models)
	}
	if engines, err := h.speech.Engines(); err == nil {
		body.CurrentEngine = engines.Current
		body.AvailableEngines = availableIDs(engines.Engines)
	}
	body.ConversationMode, _ = h.chat.Mode()

	if body.CurrentModel != "" && body.CurrentEngine != "" {
		body.Status = "healthy"
	}

	return &HealthOutput{Body: body}, nil
}

func availableIDs(infos []catalog.Info) []string {
	out := []string{}
	for _, info := range infos {
		if info.Available {
			out = append(out, info.ID)
		}
	}
	return out
}
