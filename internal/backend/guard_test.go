package backend

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicAdapter struct{}

func (panicAdapter) ID() string { return "boom" }
func (panicAdapter) Probe(context.Context) ProbeResult { panic("probe exploded") }
func (panicAdapter) Describe() Description { panic("describe exploded") }
func (panicAdapter) Close() error { return nil }

func TestGuard_WrapsErrors(t *testing.T) {
	_, err := Guard("m1", "generate", func() (string, error) {
		return "", errors.New("bad request")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendCallFailed)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "m1", ce.BackendID)
	assert.Equal(t, "generate", ce.Op)
	assert.Equal(t, "bad request", ce.Reason)
	assert.False(t, ce.Fatal)
}

func TestGuard_RecoversPanics(t *testing.T) {
	out, err := Guard("m1", "generate", func() (string, error) {
		panic("kaboom")
	})

	assert.Empty(t, out)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "kaboom")
}

func TestGuard_PassesThroughSuccess(t *testing.T) {
	out, err := Guard("m1", "generate", func() (string, error) {
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unreachable", fmt.Errorf("dial: %w", ErrUnreachable), true},
		{"missing binary", ErrBinaryNotFound, true},
		{"connection refused", fmt.Errorf("post: %w", syscall.ECONNREFUSED), true},
		{"fatal call error", &CallError{Fatal: true}, true},
		{"ordinary failure", errors.New("bad json"), false},
		{"empty output", ErrEmptyOutput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestAsCallError_KeepsExisting(t *testing.T) {
	orig := &CallError{Reason: "x", Fatal: true}
	ce := AsCallError("m2", "synthesize", fmt.Errorf("wrapped: %w", orig))

	assert.Same(t, orig, ce)
	assert.Equal(t, "m2", ce.BackendID)
	assert.Equal(t, "synthesize", ce.Op)
	assert.Nil(t, AsCallError("m2", "synthesize", nil))
}

func TestSafeProbeAndDescribe_RecoverPanics(t *testing.T) {
	res := SafeProbe(context.Background(), panicAdapter{})
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "probe exploded")

	d := SafeDescribe(panicAdapter{})
	assert.Equal(t, "boom", d.ID)
	assert.Contains(t, d.Reason, "describe exploded")
}

func TestHealth_RecordAndObserve(t *testing.T) {
	var h Health

	ok, _ := h.Status()
	assert.False(t, ok)

	h.Record(Ready())
	ok, reason := h.Status()
	assert.True(t, ok)
	assert.Empty(t, reason)

	h.Observe(errors.New("went away"))
	ok, reason = h.Status()
	assert.False(t, ok)
	assert.Equal(t, "went away", reason)
}
