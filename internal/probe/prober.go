// Package probe decides which catalog backends are usable right now.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

const DefaultTimeout = 10 * time.Second

// Inventory lists the models an external server has installed.
type Inventory interface {
	List(ctx context.Context) ([]string, error)
}

// Observer receives one call per finished probe.
type Observer interface {
	ObserveProbe(kind catalog.Kind, id string, ok bool, elapsed time.Duration)
}

// Result is the outcome of one probe run.
type Result struct {
	// Available holds the usable ids in catalog order.
	Available []string

	// Failures maps each excluded id to an error wrapping ErrProbeFailed.
	Failures map[string]error

	// InventoryErr is set when the inventory query failed and the whole
	// catalog was assumed available.
	InventoryErr error
}

// Reasons flattens Failures into id → message.
func (r Result) Reasons() map[string]string {
	out := make(map[string]string, len(r.Failures))
	for id, err := range r.Failures {
		out[id] = err.Error()
	}
	return out
}

// Prober probes the adapters of one capability.
type Prober[T backend.Adapter] struct {
	catalog   *catalog.Catalog
	registry  *backend.Registry[T]
	inventory Inventory
	timeout   time.Duration
	observer  Observer
	logger    *slog.Logger
}

// Option configures a Prober.
type Option[T backend.Adapter] func(*Prober[T])

// WithInventory makes the prober intersect the catalog with an inventory
// instead of probing each adapter.
func WithInventory[T backend.Adapter](inv Inventory) Option[T] {
	return func(p *Prober[T]) { p.inventory = inv }
}

// WithTimeout bounds each probe.
func WithTimeout[T backend.Adapter](d time.Duration) Option[T] {
	return func(p *Prober[T]) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithObserver reports probe timings.
func WithObserver[T backend.Adapter](o Observer) Option[T] {
	return func(p *Prober[T]) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger[T backend.Adapter](l *slog.Logger) Option[T] {
	return func(p *Prober[T]) { p.logger = l }
}

// NewProber creates a prober over the catalog and its adapters.
func NewProber[T backend.Adapter](cat *catalog.Catalog, reg *backend.Registry[T], opts ...Option[T]) *Prober[T] {
	p := &Prober[T]{
		catalog:  cat,
		registry: reg,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run computes the availability set. It never fails as a whole: problems
// exclude single ids and are reported in the result.
func (p *Prober[T]) Run(ctx context.Context) Result {
	kind := p.catalog.Kind()
	start := time.Now()

	var res Result
	if p.inventory != nil {
		res = p.fromInventory(ctx)
	} else {
		res = p.probeAll(ctx)
	}

	for id, err := range res.Failures {
		p.logger.Warn("Backend unavailable", "kind", kind, "backend_id", id, "error", err)
	}
	p.logger.Info("Availability probed",
		"kind", kind,
		"available", len(res.Available),
		"total", p.catalog.Len(),
		"elapsed", time.Since(start))

	return res
}

func (p *Prober[T]) fromInventory(ctx context.Context) Result {
	kind := p.catalog.Kind()
	res := Result{Failures: map[string]error{}}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	names, err := p.inventory.List(ctx)
	if err != nil {
		p.logger.Warn("Inventory query failed, assuming every backend is available", "kind", kind, "error", err)
		res.InventoryErr = err
		for _, id := range p.catalog.IDs() {
			if _, ok := p.registry.Get(id); !ok {
				res.Failures[id] = fmt.Errorf("%w: %s: no adapter configured", ErrProbeFailed, id)
				continue
			}
			res.Available = append(res.Available, id)
		}
		return res
	}

	installed := make(map[string]struct{}, len(names))
	for _, n := range names {
		installed[catalog.NormalizeModelName(n)] = struct{}{}
	}

	for _, id := range p.catalog.IDs() {
		a, ok := p.registry.Get(id)
		if !ok {
			res.Failures[id] = fmt.Errorf("%w: %s: no adapter configured", ErrProbeFailed, id)
			continue
		}
		// Adapters may serve the id under another model name.
		name := backend.ModelName(a)
		if _, ok := installed[catalog.NormalizeModelName(name)]; !ok {
			res.Failures[id] = fmt.Errorf("%w: %s: %s not installed", ErrProbeFailed, id, name)
			continue
		}
		res.Available = append(res.Available, id)
	}

	return res
}

func (p *Prober[T]) probeAll(ctx context.Context) Result {
	ids := p.catalog.IDs()
	outcomes := make([]backend.ProbeResult, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		a, ok := p.registry.Get(id)
		if !ok {
			outcomes[i] = backend.Unavailable("no adapter configured")
			continue
		}

		g.Go(func() error {
			outcomes[i] = p.probeOne(ctx, id, a)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Failures: map[string]error{}}
	for i, id := range ids {
		if outcomes[i].OK {
			res.Available = append(res.Available, id)
			continue
		}
		res.Failures[id] = fmt.Errorf("%w: %s: %s", ErrProbeFailed, id, outcomes[i].Reason)
	}

	return res
}

// probeOne runs a single probe under the timeout. An adapter that ignores
// ctx is abandoned when the timeout fires.
func (p *Prober[T]) probeOne(ctx context.Context, id string, a T) backend.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan backend.ProbeResult, 1)
	go func() {
		done <- backend.SafeProbe(ctx, a)
	}()

	var res backend.ProbeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = backend.Unavailable(fmt.Sprintf("probe timed out after %v", p.timeout))
	}

	if p.observer != nil {
		p.observer.ObserveProbe(p.catalog.Kind(), id, res.OK, time.Since(start))
	}

	return res
}

// Apply runs the prober and stores the result in set.
func (p *Prober[T]) Apply(ctx context.Context, set *Set) Result {
	res := p.Run(ctx)
	set.Replace(res.Available, res.Reasons())
	return res
}
