// Package espeak provides the system voice through espeak-ng.
package espeak

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/mapsafe"
)

const (
	defaultBinary = "espeak-ng"
	defaultRate   = 180
)

// Config configures the system voice.
type Config struct {
	BinPath string
	Timeout time.Duration
	Runner  backend.CommandRunner
}

// Backend implements backend.Synthesizer over espeak-ng, which writes WAV
// to stdout.
type Backend struct {
	backend.Health

	desc     catalog.Descriptor
	executor *backend.Executor
}

var _ backend.Synthesizer = (*Backend)(nil)

// NewBackend creates the system voice backend.
func NewBackend(desc catalog.Descriptor, cfg Config) *Backend {
	if cfg.BinPath == "" {
		cfg.BinPath = defaultBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	runner := cfg.Runner
	if runner == nil {
		runner = backend.ExecCommandRunner{}
	}

	return &Backend{
		desc:     desc,
		executor: backend.NewExecutorWithRunner(cfg.BinPath, cfg.Timeout, runner),
	}
}

// ID returns the catalog id.
func (b *Backend) ID() string {
	return b.desc.ID
}

// Probe checks that espeak-ng is installed.
func (b *Backend) Probe(ctx context.Context) backend.ProbeResult {
	if err := b.executor.Check(); err != nil {
		return b.Record(backend.Unavailable(err.Error()))
	}
	return b.Record(backend.Ready())
}

// Synthesize renders text with the hinted voice, or the configured one.
func (b *Backend) Synthesize(ctx context.Context, text, voiceHint string) (*backend.Audio, error) {
	voice := voiceHint
	if voice == "" {
		voice = b.desc.Voice()
	}

	args := []string{"--stdout"}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, "-s", strconv.Itoa(mapsafe.Get(b.desc.Params, "rate", defaultRate)))
	args = append(args, "--", text)

	stdout, stderr, err := b.executor.Execute(ctx, args, nil)
	if err != nil {
		b.Observe(err)
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}
	if len(stdout) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	audio, err := backend.DecodeWAV(stdout)
	if err != nil {
		return nil, err
	}

	b.Observe(nil)
	return audio, nil
}

// Describe reports the voice.
func (b *Backend) Describe() backend.Description {
	healthy, reason := b.Status()
	return backend.Description{
		ID:          b.desc.ID,
		DisplayName: b.desc.Name(),
		Kind:        catalog.KindSynthesis,
		Provider:    "espeak-ng",
		Features:    []string{"wav", "offline"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"binary": b.executor.BinaryPath(),
			"voice":  b.desc.Voice(),
			"rate":   mapsafe.Get(b.desc.Params, "rate", defaultRate),
		},
	}
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
