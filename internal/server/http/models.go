package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/service"
)

type (
	SwitchModelRequestDTO struct {
		ModelName string `json:"model_name" minLength:"1"`
	}

	SwitchModelResponseDTO struct {
		Success      bool          `json:"success"`
		CurrentModel string        `json:"current_model"`
		ModelInfo    *catalog.Info `json:"model_info,omitempty"`
	}
)

type (
	ListModelsOutput struct {
		Body *service.ModelList
	}

	SwitchModelInput struct {
		Body SwitchModelRequestDTO
	}

	SwitchModelOutput struct {
		Body SwitchModelResponseDTO
	}

	RefreshModelsOutput struct {
		Body *service.RefreshResult
	}
)

// ModelsHandler handles HTTP requests for generation models.
type ModelsHandler struct {
	service *service.Models
}

// NewModelsHandler creates a new ModelsHandler instance.
func NewModelsHandler(api huma.API, service *service.Models) *ModelsHandler {
	h := &ModelsHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "list-models",
		Method:        http.MethodGet,
		Path:          "/models",
		Summary:       "List generation models with availability and recommendations",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusOK,
	}, h.handleList)

	huma.Register(api, huma.Operation{
		OperationID:   "switch-model",
		Method:        http.MethodPost,
		Path:          "/models/switch",
		Summary:       "Make a model active",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusOK,
	}, h.handleSwitch)

	huma.Register(api, huma.Operation{
		OperationID:   "refresh-models",
		Method:        http.MethodPost,
		Path:          "/models/refresh",
		Summary:       "Probe every model again",
		Tags:          []string{"models"},
		DefaultStatus: http.StatusOK,
	}, h.handleRefresh)

	return h
}

func (h *ModelsHandler) handleList(_ context.Context, _ *struct{}) (*ListModelsOutput, error) {
	list, err := h.service.List()
	if err != nil {
		return nil, toHTTPError("failed to list models", err)
	}
	return &ListModelsOutput{Body: list}, nil
}

func (h *ModelsHandler) handleSwitch(_ context.Context, input *SwitchModelInput) (*SwitchModelOutput, error) {
	info, err := h.service.Switch(input.Body.ModelName)
	if err != nil {
		return nil, toHTTPError("model not available", err)
	}

	return &SwitchModelOutput{
		Body: SwitchModelResponseDTO{
			Success:      true,
			CurrentModel: input.Body.ModelName,
			ModelInfo:    info,
		},
	}, nil
}

func (h *ModelsHandler) handleRefresh(ctx context.Context, _ *struct{}) (*RefreshModelsOutput, error) {
	res, err := h.service.Refresh(ctx)
	if err != nil {
		return nil, toHTTPError("failed to refresh models", err)
	}
	return &RefreshModelsOutput{Body: res}, nil
}
