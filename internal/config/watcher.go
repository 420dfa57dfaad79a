package config

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher keeps the current config and reloads it when the file changes.
// A reload that fails validation keeps the previous snapshot.
type Watcher struct {
	path       string
	schemaPath string
	onReload   func(*Config, error)

	mu      sync.RWMutex
	current *Config
	reloads atomic.Uint32

	fsw       *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher loads the config at path and starts watching it.
func NewWatcher(path, schemaPath string, onReload func(*Config, error)) (*Watcher, error) {
	cfg, err := LoadAndValidate(path, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch config file %s: %w", path, err)
	}

	w := &Watcher{
		path:       path,
		schemaPath: schemaPath,
		onReload:   onReload,
		current:    cfg,
		fsw:        fsw,
		done:       make(chan struct{}),
	}

	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	var timer *time.Timer

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			slog.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	count := w.reloads.Add(1)
	slog.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := LoadAndValidate(w.path, w.schemaPath)
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		if w.onReload != nil {
			w.onReload(nil, err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("Config reloaded successfully", "count", count)
	if w.onReload != nil {
		w.onReload(cfg, nil)
	}
}

// Snapshot returns the current config snapshot (thread-safe).
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// ReloadCount returns the number of times the config has been reloaded.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
