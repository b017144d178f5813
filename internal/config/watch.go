package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Reloader is anything that can re-read its backing file.
type Reloader interface {
	Reload() error
}

// Watcher reloads settings whenever the settings file changes on disk.
// The parent directory is watched so that atomic rename-into-place saves
// are seen as well as in-place writes.
type Watcher struct {
	path     string
	target   Reloader
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for path that calls target.Reload.
func NewWatcher(path string, target Reloader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	slog.Debug("Watcher: watching settings", "path", abs)
	return &Watcher{path: abs, target: target, debounce: DefaultDebounce, watcher: fw}, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Watcher: context cancelled", "path", w.path)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher: fsnotify error", "error", err)

		case <-timer.C:
			if err := w.target.Reload(); err != nil {
				slog.Error("Watcher: reload failed", "path", w.path, "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		return true
	case event.Op&fsnotify.Write != 0:
		return true
	case event.Op&fsnotify.Rename != 0:
		return true
	default:
		return false
	}
}
