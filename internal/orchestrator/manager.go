package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/probe"
)

// manager owns the active backend of one capability. SwitchTo and the
// seeding done after probes and demotions are the only writers of active.
type manager[T backend.Adapter] struct {
	catalog   *catalog.Catalog
	registry  *backend.Registry[T]
	prober    *probe.Prober[T]
	available *probe.Set
	defaultID string
	recorder  Recorder
	logger    *slog.Logger

	mu     sync.RWMutex
	active string
}

func newManager[T backend.Adapter](cat *catalog.Catalog, reg *backend.Registry[T], prober *probe.Prober[T], defaultID string, rec Recorder, logger *slog.Logger) *manager[T] {
	return &manager[T]{
		catalog:   cat,
		registry:  reg,
		prober:    prober,
		available: probe.NewSet(),
		defaultID: defaultID,
		recorder:  rec,
		logger:    logger,
	}
}

// Kind returns the capability served.
func (m *manager[T]) Kind() catalog.Kind {
	return m.catalog.Kind()
}

// Catalog returns the descriptor table.
func (m *manager[T]) Catalog() *catalog.Catalog {
	return m.catalog
}

// Active returns the active backend id, or false when none is set.
func (m *manager[T]) Active() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.active, m.active != ""
}

// IsAvailable reports whether id is in the availability set.
func (m *manager[T]) IsAvailable(id string) bool {
	return m.available.Has(id)
}

// Available returns the available ids in catalog order.
func (m *manager[T]) Available() []string {
	return m.available.IDs()
}

// Reason returns why id is unavailable, if known.
func (m *manager[T]) Reason(id string) string {
	return m.available.Reason(id)
}

// SwitchTo makes id the active backend. Unknown or unavailable ids are
// rejected and leave the state unchanged.
func (m *manager[T]) SwitchTo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.catalog.Has(id) {
		return fmt.Errorf("%w: %s is not in the %s catalog", ErrSwitchRejected, id, m.Kind())
	}
	if !m.available.Has(id) {
		return fmt.Errorf("%w: %s is not available", ErrSwitchRejected, id)
	}

	if m.active != id {
		m.logger.Info("Switched backend", "kind", m.Kind(), "from", m.active, "to", id)
		m.recorder.ObserveSwitch(m.Kind(), m.active, id)
		m.active = id
	}

	return nil
}

// Refresh re-probes every backend. The active id survives when it is still
// available; otherwise the state is reseeded.
func (m *manager[T]) Refresh(ctx context.Context) probe.Result {
	res := m.prober.Apply(ctx, m.available)
	m.recorder.SetAvailable(m.Kind(), m.available.Len())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" && m.available.Has(m.active) {
		return res
	}
	m.seedLocked()

	return res
}

// seedLocked picks the default when available, else the first available id
// in catalog order, else nothing. m.mu must be held.
func (m *manager[T]) seedLocked() {
	prev := m.active

	switch {
	case m.defaultID != "" && m.available.Has(m.defaultID):
		m.active = m.defaultID
	default:
		m.active = ""
		if ids := m.available.IDs(); len(ids) > 0 {
			m.active = ids[0]
		}
	}

	if m.active == "" {
		m.logger.Warn("No backend available, running degraded", "kind", m.Kind())
	} else if m.active != prev {
		m.logger.Info("Active backend selected", "kind", m.Kind(), "backend_id", m.active)
	}
	if m.active != prev {
		m.recorder.ObserveSwitch(m.Kind(), prev, m.active)
	}
}

// demote removes id after a fatal call failure and reseeds when it was
// active.
func (m *manager[T]) demote(id string, err error) {
	if !m.available.Remove(id, err.Error()) {
		return
	}
	m.logger.Warn("Backend demoted after fatal failure", "kind", m.Kind(), "backend_id", id, "error", err)
	m.recorder.SetAvailable(m.Kind(), m.available.Len())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == id {
		m.seedLocked()
	}
}

// snapshot returns the active id and its adapter.
func (m *manager[T]) snapshot() (string, T, error) {
	var zero T

	id, ok := m.Active()
	if !ok {
		return "", zero, fmt.Errorf("%w: no active %s backend", ErrNoBackendAvailable, m.Kind())
	}

	a, err := m.adapter(id)
	return id, a, err
}

func (m *manager[T]) adapter(id string) (T, error) {
	var zero T

	if id == "" {
		return zero, fmt.Errorf("%w: no active %s backend", ErrNoBackendAvailable, m.Kind())
	}
	a, ok := m.registry.Get(id)
	if !ok {
		return zero, fmt.Errorf("%w: no adapter for %s", ErrNoBackendAvailable, id)
	}
	return a, nil
}

// Describe returns the active adapter's description.
func (m *manager[T]) Describe() (backend.Description, error) {
	_, a, err := m.snapshot()
	if err != nil {
		return backend.Description{}, err
	}
	return backend.SafeDescribe(a), nil
}

// DescribeBackend returns the description of any registered backend.
func (m *manager[T]) DescribeBackend(id string) (backend.Description, bool) {
	a, ok := m.registry.Get(id)
	if !ok {
		return backend.Description{}, false
	}
	return backend.SafeDescribe(a), true
}

// Infos joins every descriptor with its runtime facts. perf may be nil.
func (m *manager[T]) Infos(perf func(id string) (catalog.Performance, bool)) []catalog.Info {
	active, _ := m.Active()

	descs := m.catalog.List()
	out := make([]catalog.Info, 0, len(descs))
	for _, d := range descs {
		info := catalog.Info{
			Descriptor: d,
			Available:  m.available.Has(d.ID),
			Active:     d.ID == active,
		}
		if perf != nil {
			if p, ok := perf(d.ID); ok {
				info.Performance = &p
			}
		}
		out = append(out, info)
	}

	return out
}

// Close closes every adapter.
func (m *manager[T]) Close() error {
	return m.registry.Close()
}
