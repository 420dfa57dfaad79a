// Package backendtest provides adapter doubles for tests.
package backendtest

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
)

// MockGenerator is a testify mock of backend.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGenerator) Probe(ctx context.Context) backend.ProbeResult {
	args := m.Called(ctx)
	return args.Get(0).(backend.ProbeResult)
}

func (m *MockGenerator) Describe() backend.Description {
	args := m.Called()
	return args.Get(0).(backend.Description)
}

func (m *MockGenerator) Generate(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSynthesizer is a testify mock of backend.Synthesizer.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSynthesizer) Probe(ctx context.Context) backend.ProbeResult {
	args := m.Called(ctx)
	return args.Get(0).(backend.ProbeResult)
}

func (m *MockSynthesizer) Describe() backend.Description {
	args := m.Called()
	return args.Get(0).(backend.Description)
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceHint string) (*backend.Audio, error) {
	args := m.Called(ctx, text, voiceHint)
	if a, ok := args.Get(0).(*backend.Audio); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSynthesizer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Fake is a scripted adapter that implements both Generator and
// Synthesizer. It is safe for concurrent use.
type Fake struct {
	Kind catalog.Kind

	mu        sync.Mutex
	id        string
	probe     func(ctx context.Context) backend.ProbeResult
	generate  func(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error)
	synth     func(ctx context.Context, text, voice string) (*backend.Audio, error)
	probes    int
	calls     int
	lastVoice string
	lastOpts  backend.Options
	closed    bool
}

// NewFake returns a fake that probes OK and echoes the last message.
func NewFake(id string) *Fake {
	return &Fake{id: id, Kind: catalog.KindGeneration}
}

// Unavailable makes every probe fail with reason.
func (f *Fake) Unavailable(reason string) *Fake {
	return f.OnProbe(func(context.Context) backend.ProbeResult {
		return backend.Unavailable(reason)
	})
}

// OnProbe replaces the probe behavior.
func (f *Fake) OnProbe(fn func(ctx context.Context) backend.ProbeResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probe = fn
	return f
}

// OnGenerate replaces the generation behavior.
func (f *Fake) OnGenerate(fn func(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generate = fn
	return f
}

// OnSynthesize replaces the synthesis behavior.
func (f *Fake) OnSynthesize(fn func(ctx context.Context, text, voice string) (*backend.Audio, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synth = fn
	return f
}

func (f *Fake) ID() string { return f.id }

func (f *Fake) Probe(ctx context.Context) backend.ProbeResult {
	f.mu.Lock()
	f.probes++
	fn := f.probe
	f.mu.Unlock()

	if fn == nil {
		return backend.Ready()
	}
	return fn(ctx)
}

func (f *Fake) Describe() backend.Description {
	return backend.Description{ID: f.id, Kind: f.Kind, Provider: "fake", Healthy: true}
}

func (f *Fake) Generate(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	fn := f.generate
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, opts)
	}
	if len(messages) == 0 {
		return f.id + ":", nil
	}
	return f.id + ":" + messages[len(messages)-1].Content, nil
}

func (f *Fake) Synthesize(ctx context.Context, text, voice string) (*backend.Audio, error) {
	f.mu.Lock()
	f.calls++
	f.lastVoice = voice
	fn := f.synth
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice)
	}
	return &backend.Audio{
		Samples:    make([]float32, len(text)),
		SampleRate: 16000,
		Channels:   1,
		Format:     "pcm",
	}, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Probes returns how many times Probe ran.
func (f *Fake) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// Calls returns how many Generate or Synthesize calls ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastVoice returns the voice hint of the last Synthesize call.
func (f *Fake) LastVoice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVoice
}

// LastOptions returns the options of the last Generate call.
func (f *Fake) LastOptions() backend.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// Closed reports whether Close ran.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MockRunner is a testify mock of backend.CommandRunner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args, stdin)
	stdout, _ := a.Get(0).([]byte)
	stderr, _ := a.Get(1).([]byte)
	return stdout, stderr, a.Error(2)
}

func (m *MockRunner) LookPath(name string) (string, error) {
	a := m.Called(name)
	return a.String(0), a.Error(1)
}
