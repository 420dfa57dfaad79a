// Package estimate attaches latency and throughput figures to generation
// backends, either measured with a fixed workload or derived from ratings.
package estimate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Mode selects how performance data is obtained.
type Mode string

const (
	ModeMeasure Mode = "measure"
	ModeSkip    Mode = "skip"
	ModeOff     Mode = "off"
)

const (
	// Workload is the prompt sent to every backend in measure mode.
	Workload = "Hi! How are you today?"

	// WorkloadTokens caps the reply length of the workload.
	WorkloadTokens = 20

	DefaultTimeout = 30 * time.Second
)

// ParseMode validates a mode string. Empty means skip.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeSkip, nil
	case ModeMeasure, ModeSkip, ModeOff:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown benchmark mode %q", s)
}

// Table holds the performance data per backend id.
type Table struct {
	mu   sync.RWMutex
	perf map[string]catalog.Performance
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{perf: map[string]catalog.Performance{}}
}

// Get returns the data for id.
func (t *Table) Get(id string) (catalog.Performance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.perf[id]
	return p, ok
}

// Set stores the data for id.
func (t *Table) Set(id string, p catalog.Performance) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.perf[id] = p
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.perf)
}

// Reset drops every entry.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.perf = map[string]catalog.Performance{}
}

// Estimator fills a Table.
type Estimator struct {
	mode    Mode
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an estimator.
func New(mode Mode, timeout time.Duration, logger *slog.Logger) *Estimator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{mode: mode, timeout: timeout, logger: logger, now: time.Now}
}

// Mode returns the configured mode.
func (e *Estimator) Mode() Mode {
	return e.mode
}

// Run refreshes table for the available ids. Backends are measured one at
// a time; a failing backend is left without data.
func (e *Estimator) Run(ctx context.Context, cat *catalog.Catalog, reg *backend.Registry[backend.Generator], available []string, table *Table) {
	table.Reset()

	switch e.mode {
	case ModeOff:
		return
	case ModeMeasure:
		e.measureAll(ctx, reg, available, table)
	default:
		e.fromRatings(cat, available, table)
	}
}

func (e *Estimator) fromRatings(cat *catalog.Catalog, available []string, table *Table) {
	for _, id := range available {
		d, ok := cat.Get(id)
		if !ok || d.SpeedRating <= 0 {
			continue
		}
		table.Set(id, FromRatings(d, e.now()))
	}
}

// FromRatings derives performance from the speed rating alone.
func FromRatings(d catalog.Descriptor, at time.Time) catalog.Performance {
	speed := float64(d.SpeedRating)
	return catalog.Performance{
		Throughput: speed * 2,
		Latency:    time.Duration(2 / speed * float64(time.Second)),
		Estimated:  true,
		MeasuredAt: at,
	}
}

func (e *Estimator) measureAll(ctx context.Context, reg *backend.Registry[backend.Generator], available []string, table *Table) {
	for _, id := range available {
		if ctx.Err() != nil {
			return
		}

		g, ok := reg.Get(id)
		if !ok {
			continue
		}

		perf, err := e.measure(ctx, g)
		if err != nil {
			e.logger.Warn("Benchmark failed", "backend_id", id, "error", err)
			continue
		}

		table.Set(id, perf)
		e.logger.Info("Benchmark done", "backend_id", id, "latency", perf.Latency, "tokens_per_second", perf.Throughput)
	}
}

func (e *Estimator) measure(ctx context.Context, g backend.Generator) (catalog.Performance, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	msgs := []backend.Message{{Role: backend.RoleUser, Content: Workload}}
	opts := backend.Options{MaxTokens: WorkloadTokens}

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, err := backend.Guard(g.ID(), "benchmark", func() (string, error) {
			return g.Generate(ctx, msgs, opts)
		})
		done <- err
	}()

	// A generator that ignores ctx is abandoned when the timeout fires.
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("benchmark timed out after %v: %w", e.timeout, ctx.Err())
	}
	latency := time.Since(start)
	if err != nil {
		return catalog.Performance{}, err
	}
	if latency <= 0 {
		latency = time.Nanosecond
	}

	return catalog.Performance{
		Latency:    latency,
		Throughput: WorkloadTokens / latency.Seconds(),
		MeasuredAt: e.now(),
	}, nil
}
