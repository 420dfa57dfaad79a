// Package source fetches engine model files from remote repositories.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	defaultBinary     = "hf"
	markerFilename    = ".polyglot-downloaded"
)

// HuggingFace describes a Hugging Face repository to download.
type HuggingFace struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// HuggingFaceFetcher downloads a repository with the hf command-line tool.
// It implements backend.ModelFetcher.
type HuggingFaceFetcher struct {
	Spec      HuggingFace
	TargetDir string

	BinPath    string
	Runner     backend.CommandRunner
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

var _ backend.ModelFetcher = (*HuggingFaceFetcher)(nil)

// NewHuggingFaceFetcher creates a fetcher that downloads spec under targetDir.
func NewHuggingFaceFetcher(spec HuggingFace, targetDir string) *HuggingFaceFetcher {
	return &HuggingFaceFetcher{
		Spec:       spec,
		TargetDir:  targetDir,
		BinPath:    defaultBinary,
		Runner:     backend.ExecCommandRunner{},
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		Timeout:    defaultTimeout,
		Logger:     slog.Default(),
	}
}

// Fetch downloads the repository unless an up-to-date marker exists and
// returns the local directory.
func (f *HuggingFaceFetcher) Fetch(ctx context.Context) (string, error) {
	repo := strings.TrimSpace(f.Spec.Repo)
	if repo == "" {
		return "", fmt.Errorf("invalid repo name: %q", f.Spec.Repo)
	}

	fullPath := filepath.Join(f.TargetDir, repo)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := f.markerContent(repo)

	if !f.Spec.ForceDownload && !f.shouldRedownload(markerPath, markerContent) {
		f.logger().Info("Model already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", fullPath)
		return fullPath, nil
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	args := f.args(repo, fullPath)
	retries := max(f.MaxRetries, 1)

	var lastErr error
	for attempt := range retries {
		if attempt > 0 {
			f.logger().Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(f.RetryDelay):
			}
		} else {
			f.logger().Info("Downloading model", "repo", repo, "path", fullPath)
		}

		runCtx, cancel := context.WithTimeout(ctx, f.Timeout)
		_, stderr, err := f.Runner.Run(runCtx, f.BinPath, args, nil)
		runErr := runCtx.Err()
		cancel()

		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				f.logger().Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			f.logger().Info("Model downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)
			return fullPath, nil
		}

		lastErr = err
		f.logger().Error("Failed to download model", "repo", repo, "attempt", attempt+1, "error", err, "output", string(stderr))

		if ctx.Err() != nil {
			return "", fmt.Errorf("download canceled: %w", ctx.Err())
		}
		if errors.Is(runErr, context.DeadlineExceeded) {
			f.logger().Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		}
	}

	return "", fmt.Errorf("download %s: %w", repo, lastErr)
}

func (f *HuggingFaceFetcher) args(repo, dir string) []string {
	args := []string{"download", repo, "--local-dir", dir}

	s := f.Spec
	if s.Revision != "" {
		args = append(args, "--revision", s.Revision)
	}
	if s.RepoType != "" {
		args = append(args, "--repo-type", s.RepoType)
	}
	for _, inc := range s.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range s.Exclude {
		args = append(args, "--exclude", exc)
	}
	if s.ForceDownload {
		args = append(args, "--force-download")
	}
	if s.Token != "" {
		args = append(args, "--token", s.Token)
	}
	if s.MaxWorkers > 0 {
		args = append(args, "--max-workers", fmt.Sprintf("%d", s.MaxWorkers))
	}

	return args
}

// markerContent identifies what was downloaded so a config change triggers
// a new download.
func (f *HuggingFaceFetcher) markerContent(repo string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\ninclude: %s\n", repo, f.Spec.Revision, strings.Join(f.Spec.Include, ","))
}

func (f *HuggingFaceFetcher) shouldRedownload(markerPath, expected string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		return true
	}

	if string(content) != expected {
		f.logger().Info("Model config changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}

func (f *HuggingFaceFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
