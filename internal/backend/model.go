package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ModelLocator is an optional interface for backends that can locate
// the actual model file to load or execute.
type ModelLocator interface {
	// ResolveModelPath resolves the real model path inside the base downloaded directory.
	ResolveModelPath(basePath string) (string, error)
}

// FindModelFile returns basePath when it is a file, otherwise the first file
// under basePath (lexical order) with the given extension.
func FindModelFile(basePath, ext string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", fmt.Errorf("model path %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return basePath, nil
	}

	var matches []string
	err = filepath.WalkDir(basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ext {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", basePath, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s model file under %s", ext, basePath)
	}

	sort.Strings(matches)
	return matches[0], nil
}

// ModelFetcher makes model files available locally and returns the
// directory holding them.
type ModelFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// ResolveModel returns the model file for an adapter: path itself when set,
// otherwise the directory produced by fetcher, resolved through locator.
func ResolveModel(ctx context.Context, path string, fetcher ModelFetcher, locator ModelLocator) (string, error) {
	if path == "" && fetcher == nil {
		return "", fmt.Errorf("no model path or source configured")
	}

	if path == "" {
		dir, err := fetcher.Fetch(ctx)
		if err != nil {
			return "", fmt.Errorf("fetch model: %w", err)
		}
		path = dir
	}

	return locator.ResolveModelPath(path)
}
