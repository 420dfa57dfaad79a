package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
	"github.com/ekisa-team/polyglot/internal/service"
)

// toHTTPError maps service errors to API errors.
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrUnknownMode),
		errors.Is(err, orchestrator.ErrSwitchRejected):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, orchestrator.ErrNoBackendAvailable),
		errors.Is(err, service.ErrNotInitialized):
		return huma.Error503ServiceUnavailable(msg, err)
	case errors.Is(err, backend.ErrBackendCallFailed):
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
