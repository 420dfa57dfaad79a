// Package piper synthesizes speech with the Piper command-line binary.
package piper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/mapsafe"
)

const defaultBinary = "piper"

// Config configures a Piper voice.
type Config struct {
	BinPath   string
	ModelPath string
	Timeout   time.Duration
	Fetcher   backend.ModelFetcher
	Runner    backend.CommandRunner
	TempDir   string
}

// Backend implements backend.Synthesizer for Piper TTS.
type Backend struct {
	backend.Health

	desc     catalog.Descriptor
	cfg      Config
	executor *backend.Executor

	mu        sync.Mutex
	modelPath string
}

var (
	_ backend.Synthesizer  = (*Backend)(nil)
	_ backend.ModelLocator = (*Backend)(nil)
)

// NewBackend creates a new Piper backend.
func NewBackend(desc catalog.Descriptor, cfg Config) *Backend {
	if cfg.BinPath == "" {
		cfg.BinPath = defaultBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	runner := cfg.Runner
	if runner == nil {
		runner = backend.ExecCommandRunner{}
	}

	return &Backend{
		desc:     desc,
		cfg:      cfg,
		executor: backend.NewExecutorWithRunner(cfg.BinPath, cfg.Timeout, runner),
	}
}

// ID returns the catalog id.
func (b *Backend) ID() string {
	return b.desc.ID
}

// ResolveModelPath finds the .onnx voice file under basePath.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	return backend.FindModelFile(basePath, ".onnx")
}

// Probe checks the binary and locates the voice model.
func (b *Backend) Probe(ctx context.Context) backend.ProbeResult {
	if err := b.executor.Check(); err != nil {
		return b.Record(backend.Unavailable(err.Error()))
	}

	if _, err := b.model(ctx); err != nil {
		return b.Record(backend.Unavailable(err.Error()))
	}

	return b.Record(backend.Ready())
}

func (b *Backend) model(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.modelPath != "" {
		return b.modelPath, nil
	}

	path, err := backend.ResolveModel(ctx, b.cfg.ModelPath, b.cfg.Fetcher, b)
	if err != nil {
		return "", err
	}

	b.modelPath = path
	return path, nil
}

// Synthesize renders text to WAV. A numeric voiceHint selects the speaker
// of a multi-speaker model.
func (b *Backend) Synthesize(ctx context.Context, text, voiceHint string) (*backend.Audio, error) {
	modelPath, err := b.model(ctx)
	if err != nil {
		return nil, err
	}

	// Piper outputs to a file, so a temp file must be used, then read it back.
	outputFile := filepath.Join(b.cfg.TempDir, fmt.Sprintf("piper_%d.wav", time.Now().UnixNano()))
	defer os.Remove(outputFile)

	args := b.buildArgs(modelPath, outputFile, voiceHint)

	// Piper reads text from stdin
	_, stderr, err := b.executor.Execute(ctx, args, strings.NewReader(text))
	if err != nil {
		b.Observe(err)
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	audio, err := backend.DecodeWAV(data)
	if err != nil {
		return nil, err
	}

	b.Observe(nil)
	return audio, nil
}

// buildArgs builds Piper command-line arguments.
func (b *Backend) buildArgs(modelPath, outputFile, voiceHint string) []string {
	args := []string{
		"--model", modelPath,
		"--output_file", outputFile,
	}

	p := b.desc.Params

	// Speaker ID
	speaker := mapsafe.Get(p, "speaker_id", -1)
	if id, err := strconv.Atoi(voiceHint); err == nil {
		speaker = id
	}
	if speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}

	// Length scale (speed)
	if v := mapsafe.Get(p, "length_scale", 0.0); v > 0 {
		args = append(args, "--length_scale", fmt.Sprintf("%.2f", v))
	}

	// Noise scale
	if v := mapsafe.Get(p, "noise_scale", 0.0); v > 0 {
		args = append(args, "--noise_scale", fmt.Sprintf("%.2f", v))
	}

	// Noise width
	if v := mapsafe.Get(p, "noise_w", 0.0); v > 0 {
		args = append(args, "--noise_w", fmt.Sprintf("%.2f", v))
	}

	// Sentence silence
	if v := mapsafe.Get(p, "sentence_silence", 0.0); v > 0 {
		args = append(args, "--sentence_silence", fmt.Sprintf("%.2f", v))
	}

	return args
}

// Describe reports the voice model.
func (b *Backend) Describe() backend.Description {
	healthy, reason := b.Status()

	b.mu.Lock()
	modelPath := b.modelPath
	b.mu.Unlock()

	return backend.Description{
		ID:          b.desc.ID,
		DisplayName: b.desc.Name(),
		Kind:        catalog.KindSynthesis,
		Provider:    "piper",
		Features:    []string{"wav", "offline"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"binary":     b.executor.BinaryPath(),
			"model_path": modelPath,
			"language":   b.desc.Language(),
		},
	}
}

// Close cleans up resources. Piper does not have any resources to clean up.
func (b *Backend) Close() error {
	return nil
}
