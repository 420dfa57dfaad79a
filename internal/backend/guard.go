package backend

import (
	"context"
	"fmt"
	"log/slog"
)

// Guard runs fn and converts any returned error or panic into a *CallError,
// so no adapter failure can escape the call boundary as a crash.
func Guard[T any](id, op string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Backend panicked", "backend_id", id, "op", op, "panic", r)
			var zero T
			out = zero
			err = &CallError{BackendID: id, Op: op, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	out, err = fn()
	if err != nil {
		var zero T
		return zero, AsCallError(id, op, err)
	}

	return out, nil
}

// SafeProbe runs the adapter's Probe and turns a panic into a failed result.
func SafeProbe(ctx context.Context, a Adapter) (res ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Unavailable(fmt.Sprintf("probe panicked: %v", r))
		}
	}()

	return a.Probe(ctx)
}

// SafeDescribe runs the adapter's Describe and falls back to a minimal
// description on panic.
func SafeDescribe(a Adapter) (d Description) {
	defer func() {
		if r := recover(); r != nil {
			d = Description{ID: a.ID(), Reason: fmt.Sprintf("describe panicked: %v", r)}
		}
	}()

	return a.Describe()
}
