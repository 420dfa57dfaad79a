package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/selection"
	"github.com/ekisa-team/polyglot/internal/service"
)

type (
	ChatRequestDTO struct {
		Message          string `json:"message" minLength:"1" maxLength:"4096"`
		ConversationType string `json:"conversation_type,omitempty" doc:"Category hint that bypasses classification"`
		ModelPreference  string `json:"model_preference,omitempty" doc:"Model used when auto switching is off"`
	}

	ConfigRequestDTO struct {
		ConfigType string `json:"config_type" minLength:"1" doc:"Conversation mode: speed, balanced or quality"`
	}

	ConfigResponseDTO struct {
		Success  bool              `json:"success"`
		Config   string            `json:"config"`
		Settings config.ModeConfig `json:"settings"`
		Modes    []string          `json:"modes"`
	}

	HistoryResponseDTO struct {
		History       []service.Turn `json:"history"`
		TotalMessages int            `json:"total_messages"`
	}
)

type (
	ChatInput struct {
		Body ChatRequestDTO
	}

	ChatOutput struct {
		Body *service.ChatResponse
	}

	ConfigInput struct {
		Body ConfigRequestDTO
	}

	ConfigOutput struct {
		Body ConfigResponseDTO
	}

	HistoryOutput struct {
		Body HistoryResponseDTO
	}
)

// ChatHandler handles HTTP requests for the conversation.
type ChatHandler struct {
	service *service.Chat
}

// NewChatHandler creates a new ChatHandler instance.
func NewChatHandler(api huma.API, service *service.Chat) *ChatHandler {
	h := &ChatHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "chat",
		Method:        http.MethodPost,
		Path:          "/chat",
		Summary:       "Send a message and get a reply",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusOK,
	}, h.handleChat)

	huma.Register(api, huma.Operation{
		OperationID:   "get-config",
		Method:        http.MethodGet,
		Path:          "/config",
		Summary:       "Get the conversation mode",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusOK,
	}, h.handleGetConfig)

	huma.Register(api, huma.Operation{
		OperationID:   "update-config",
		Method:        http.MethodPost,
		Path:          "/config",
		Summary:       "Change the conversation mode",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusOK,
	}, h.handleUpdateConfig)

	huma.Register(api, huma.Operation{
		OperationID:   "get-history",
		Method:        http.MethodGet,
		Path:          "/conversation",
		Summary:       "Get the conversation history",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusOK,
	}, h.handleGetHistory)

	huma.Register(api, huma.Operation{
		OperationID:   "clear-history",
		Method:        http.MethodDelete,
		Path:          "/conversation",
		Summary:       "Clear the conversation history",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusNoContent,
	}, h.handleClearHistory)

	return h
}

func (h *ChatHandler) handleChat(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
	resp, err := h.service.Send(ctx, service.ChatRequest{
		Message:         input.Body.Message,
		Category:        selection.Category(input.Body.ConversationType),
		ModelPreference: input.Body.ModelPreference,
	})
	if err != nil {
		return nil, toHTTPError("chat failed", err)
	}
	return &ChatOutput{Body: resp}, nil
}

func (h *ChatHandler) handleGetConfig(_ context.Context, _ *struct{}) (*ConfigOutput, error) {
	name, mode := h.service.Mode()
	return &ConfigOutput{Body: ConfigResponseDTO{
		Success:  true,
		Config:   name,
		Settings: mode,
		Modes:    h.service.Modes(),
	}}, nil
}

func (h *ChatHandler) handleUpdateConfig(_ context.Context, input *ConfigInput) (*ConfigOutput, error) {
	mode, err := h.service.SetMode(input.Body.ConfigType)
	if err != nil {
		return nil, toHTTPError("invalid configuration type", err)
	}
	return &ConfigOutput{Body: ConfigResponseDTO{
		Success:  true,
		Config:   input.Body.ConfigType,
		Settings: mode,
		Modes:    h.service.Modes(),
	}}, nil
}

func (h *ChatHandler) handleGetHistory(_ context.Context, _ *struct{}) (*HistoryOutput, error) {
	turns := h.service.History().Turns()
	if turns == nil {
		turns = []service.Turn{}
	}
	return &HistoryOutput{Body: HistoryResponseDTO{History: turns, TotalMessages: len(turns)}}, nil
}

func (h *ChatHandler) handleClearHistory(_ context.Context, _ *struct{}) (*struct{}, error) {
	h.service.History().Clear()
	return nil, nil
}
