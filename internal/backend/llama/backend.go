// Package llama runs GGUF models through the llama.cpp command-line binary.
package llama

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
	"github.com/ekisa-team/polyglot/internal/catalog"
	"github.com/ekisa-team/polyglot/internal/mapsafe"
)

const defaultBinary = "llama-cli"

// Config configures a llama.cpp generator.
type Config struct {
	BinPath   string
	ModelPath string
	Timeout   time.Duration
	Fetcher   backend.ModelFetcher
	Runner    backend.CommandRunner
}

// Backend implements backend.Generator for llama.cpp.
type Backend struct {
	backend.Health

	desc     catalog.Descriptor
	cfg      Config
	executor *backend.Executor

	mu        sync.Mutex
	modelPath string
}

var (
	_ backend.Generator    = (*Backend)(nil)
	_ backend.ModelLocator = (*Backend)(nil)
)

// NewBackend creates a new llama.cpp backend.
func NewBackend(desc catalog.Descriptor, cfg Config) *Backend {
	if cfg.BinPath == "" {
		cfg.BinPath = defaultBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Minute
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

// ResolveModelPath finds the .gguf file under basePath.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	return backend.FindModelFile(basePath, ".gguf")
}

// Probe checks the binary and locates the model file.
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

// Generate runs one completion.
func (b *Backend) Generate(ctx context.Context, messages []backend.Message, opts backend.Options) (string, error) {
	modelPath, err := b.model(ctx)
	if err != nil {
		return "", err
	}

	args := b.buildArgs(modelPath, messages, opts)

	stdout, stderr, err := b.executor.Execute(ctx, args, nil)
	if err != nil {
		b.Observe(err)
		return "", fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	text := parseOutput(string(stdout))
	if text == "" {
		return "", backend.ErrEmptyOutput
	}

	b.Observe(nil)
	return text, nil
}

// buildArgs builds llama-cli command-line arguments.
func (b *Backend) buildArgs(modelPath string, messages []backend.Message, opts backend.Options) []string {
	args := []string{"--model", modelPath}

	system, prompt := renderPrompt(messages)
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	// Context size
	if n := b.desc.ContextWindow(); n > 0 {
		args = append(args, "--ctx-size", fmt.Sprintf("%d", n))
	}

	// Token limit
	if opts.MaxTokens > 0 {
		args = append(args, "-n", fmt.Sprintf("%d", opts.MaxTokens))
	} else {
		args = append(args, "-n", "512")
	}

	// GPU layers
	if v := mapsafe.Get(b.desc.Params, "n_gpu_layers", 0); v > 0 {
		args = append(args, "-ngl", fmt.Sprintf("%d", v))
	}

	// Threads
	if v := mapsafe.Get(b.desc.Params, "threads", 0); v > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", v))
	}

	temp := opts.Temperature
	if temp == 0 {
		temp = b.desc.Temperature()
	}
	args = append(args, "--temp", fmt.Sprintf("%.2f", temp))

	args = append(args, "--repeat-penalty", fmt.Sprintf("%.2f", mapsafe.Get(b.desc.Params, "repeat_penalty", 1.1)))

	if opts.TopP > 0 {
		args = append(args, "--top-p", fmt.Sprintf("%.2f", opts.TopP))
	}
	if opts.TopK > 0 {
		args = append(args, "--top-k", fmt.Sprintf("%d", opts.TopK))
	}

	args = append(args,
		"--no-warmup",
		"--no-display-prompt",
		"--simple-io",
		"--no-conversation",
		"--prompt", prompt,
	)

	return args
}

// renderPrompt splits off the system prompt and flattens the rest of the
// exchange into a transcript that ends on the assistant's turn.
func renderPrompt(messages []backend.Message) (system, prompt string) {
	var sb strings.Builder
	var systems []string

	for _, m := range messages {
		switch m.Role {
		case backend.RoleSystem:
			systems = append(systems, m.Content)
		case backend.RoleAssistant:
			sb.WriteString("Assistant: ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		default:
			sb.WriteString("User: ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Assistant:")

	return strings.Join(systems, "\n"), sb.String()
}

// parseOutput strips llama.cpp log lines from the generation.
func parseOutput(output string) string {
	lines := strings.Split(output, "\n")
	var result strings.Builder
	inGeneration := false

	for _, line := range lines {
		if isLogLine(line) {
			continue
		}

		if strings.TrimSpace(line) != "" {
			inGeneration = true
		}

		if inGeneration {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return strings.TrimSpace(result.String())
}

var logPrefixes = []string{
	"system_info:", "llama_", "ggml_", "print_info:", "load:", "main:", "sampler", "generate:",
}

func isLogLine(line string) bool {
	for _, p := range logPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Describe reports the binary and model.
func (b *Backend) Describe() backend.Description {
	healthy, reason := b.Status()

	b.mu.Lock()
	modelPath := b.modelPath
	b.mu.Unlock()

	return backend.Description{
		ID:          b.desc.ID,
		DisplayName: b.desc.Name(),
		Kind:        catalog.KindGeneration,
		Provider:    "llama.cpp",
		Features:    []string{"chat", "offline"},
		Healthy:     healthy,
		Reason:      reason,
		Extra: map[string]any{
			"binary":     b.executor.BinaryPath(),
			"model_path": modelPath,
		},
	}
}

// Close cleans up resources. Llama does not have any resources to clean up.
func (b *Backend) Close() error {
	return nil
}
