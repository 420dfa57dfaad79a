package backend

import (
	"errors"
	"fmt"
	"sync"
)

// Registry manages adapter instances of one capability, in registration order.
type Registry[T Adapter] struct {
	adapters map[string]T
	order    []string
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry.
func NewRegistry[T Adapter]() *Registry[T] {
	return &Registry[T]{
		adapters: make(map[string]T),
	}
}

// Register adds an adapter to the registry.
func (r *Registry[T]) Register(a T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, ok := r.adapters[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	r.adapters[id] = a
	r.order = append(r.order, id)

	return nil
}

// Get retrieves an adapter by backend id.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	return a, ok
}

// List returns every adapter in registration order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}

	return out
}

// Len returns the number of registered adapters.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Close closes all registered adapters and joins their errors.
func (r *Registry[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range r.order {
		if err := r.adapters[id].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
