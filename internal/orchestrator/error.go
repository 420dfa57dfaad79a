package orchestrator

import (
	"errors"

	"github.com/ekisa-team/polyglot/internal/backend"
)

// Error definitions for the orchestrator package.
var (
	ErrNoBackendAvailable = errors.New("no backend available")
	ErrSwitchRejected     = errors.New("switch rejected")
	ErrInvalidConfig      = errors.New("invalid orchestrator configuration")
)

// ErrorKind classifies a failed dispatch for callers.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindNoBackendAvailable ErrorKind = "NoBackendAvailable"
	ErrorKindSwitchRejected     ErrorKind = "SwitchRejected"
	ErrorKindBackendCallFailed  ErrorKind = "BackendCallFailed"
)

// KindOf maps an error to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrSwitchRejected):
		return ErrorKindSwitchRejected
	case errors.Is(err, ErrNoBackendAvailable):
		return ErrorKindNoBackendAvailable
	case errors.Is(err, backend.ErrBackendCallFailed):
		return ErrorKindBackendCallFailed
	}
	return ErrorKindBackendCallFailed
}
