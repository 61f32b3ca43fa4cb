package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher loads a definition file into an engine and reloads it every
// time the file changes. A file that fails to load or build is logged and
// the engine keeps its current generation.
type FileWatcher struct {
	logger   *slog.Logger
	path     string
	engine   Engine
	debounce time.Duration
}

// NewFileWatcher creates a watcher for path. Bursts of events closer than
// debounce trigger one reload.
func NewFileWatcher(logger *slog.Logger, path string, engine Engine, debounce time.Duration) *FileWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		panic("loader: engine cannot be nil")
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &FileWatcher{
		logger:   logger,
		path:     filepath.Clean(path),
		engine:   engine,
		debounce: debounce,
	}
}

// Load reads the file once and reloads the engine.
func (w *FileWatcher) Load() error {
	def, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("rules file rejected, keeping current generation",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return err
	}
	// Reload logs its own outcome.
	_, err = w.engine.Reload(def)
	return err
}

// Run loads the file, then watches it until ctx is cancelled. The parent
// directory is watched because editors and config-map mounts replace files
// by rename, which drops a watch on the file itself.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Startup failures are not fatal: the watcher picks up the fix.
	_ = w.Load()

	w.logger.Info("watching rules file",
		slog.String("path", w.path),
		slog.Duration("debounce", w.debounce),
	)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("rules file event", slog.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			_ = w.Load()
		}
	}
}

func (w *FileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	// Chmod alone does not change content; Remove is followed by Create
	// when the file is replaced.
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
