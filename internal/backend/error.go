package backend

import (
	"errors"
	"fmt"
	"syscall"
)

// Error definitions for the backend package.
var (
	ErrBackendCallFailed = errors.New("backend call failed")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrNotFound          = errors.New("backend not found in registry")
	ErrUnreachable       = errors.New("backend unreachable")
	ErrBinaryNotFound    = errors.New("binary not found")
	ErrEmptyOutput       = errors.New("backend returned empty output")
	ErrInvalidAudio      = errors.New("invalid audio payload")
)

// CallError is the uniform failure of a Generate or Synthesize call.
type CallError struct {
	BackendID string
	Op        string
	Reason    string
	// Fatal marks failures that mean the backend is gone rather than a
	// single bad request.
	Fatal bool
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("backend %s: %s failed: %s", e.BackendID, e.Op, e.Reason)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrBackendCallFailed) match.
func (e *CallError) Is(target error) bool {
	return target == ErrBackendCallFailed
}

// AsCallError converts err into a *CallError attributed to id.
func AsCallError(id, op string, err error) *CallError {
	if err == nil {
		return nil
	}

	var ce *CallError
	if errors.As(err, &ce) {
		if ce.BackendID == "" {
			ce.BackendID = id
		}
		if ce.Op == "" {
			ce.Op = op
		}
		return ce
	}

	return &CallError{
		BackendID: id,
		Op:        op,
		Reason:    err.Error(),
		Fatal:     IsFatal(err),
		Err:       err,
	}
}

// IsFatal reports whether err means the backend cannot serve any request.
func IsFatal(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) && ce.Fatal {
		return true
	}

	return errors.Is(err, ErrUnreachable) ||
		errors.Is(err, ErrBinaryNotFound) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
