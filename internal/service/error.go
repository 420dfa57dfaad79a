package service

import (
	"errors"
	"fmt"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/orchestrator"
)

// Error definitions for the service package.
var (
	ErrUnknownMode    = errors.New("unknown conversation mode")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotInitialized = errors.New("orchestrator is not initialized")
)

// resultError turns a failed dispatch result into an error that matches the
// orchestrator and backend sentinels.
func resultError(kind orchestrator.ErrorKind, msg string) error {
	switch kind {
	case orchestrator.ErrorKindNone:
		return nil
	case orchestrator.ErrorKindNoBackendAvailable:
		return fmt.Errorf("%w: %s", orchestrator.ErrNoBackendAvailable, msg)
	case orchestrator.ErrorKindSwitchRejected:
		return fmt.Errorf("%w: %s", orchestrator.ErrSwitchRejected, msg)
	default:
		return fmt.Errorf("%w: %s", backend.ErrBackendCallFailed, msg)
	}
}
