// Package watch re-runs a batch whenever a module file in its source
// folder is created, written, removed or renamed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"lwdecomp/internal/filter"
)

const DefaultDebounce = 500 * time.Millisecond

type Watcher struct {
	// Dirs maps a batch label to the source folder it decompiles.
	Dirs     map[string]string
	Filter   filter.Filter
	Debounce time.Duration
	Run      func(ctx context.Context, label string) error
	Logger   *zap.Logger

	mu      sync.Mutex
	byDir   map[string]string
	pending map[string]time.Time
}

// Start watches every folder in Dirs and blocks until ctx is done. Run
// errors are logged and do not stop the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	if w.Run == nil {
		return errors.New("watch: run callback is required")
	}
	if len(w.Dirs) == 0 {
		return errors.New("watch: no folders to watch")
	}
	logger := w.logger()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	w.init()
	for dir, label := range w.byDir {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s folder %s: %w", label, dir, err)
		}
		logger.Info("watching folder", zap.String("batch", label), zap.String("dir", dir))
	}

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, time.Now())
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", zap.Error(err))
		case now := <-ticker.C:
			for _, label := range w.due(now) {
				if ctx.Err() != nil {
					return nil
				}
				logger.Info("module change detected, re-running batch", zap.String("batch", label))
				if err := w.Run(ctx, label); err != nil {
					logger.Error("batch re-run failed", zap.String("batch", label), zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) init() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byDir = make(map[string]string, len(w.Dirs))
	for label, dir := range w.Dirs {
		w.byDir[filepath.Clean(dir)] = label
	}
	w.pending = make(map[string]time.Time)
}

// handleEvent marks the owning batch dirty when the event concerns an
// eligible module. It reports whether the event was accepted.
func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if !w.Filter.Match(name) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	label, ok := w.byDir[filepath.Dir(filepath.Clean(event.Name))]
	if !ok {
		return false
	}
	w.pending[label] = now
	w.logger().Debug("module event", zap.String("batch", label), zap.String("file", name), zap.String("op", event.Op.String()))
	return true
}

// due returns, sorted, the labels whose last event is older than the
// debounce window, and clears them.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for label, last := range w.pending {
		if now.Sub(last) >= w.debounce() {
			out = append(out, label)
			delete(w.pending, label)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) debounce() time.Duration {
	if w.Debounce <= 0 {
		return DefaultDebounce
	}
	return w.Debounce
}

func (w *Watcher) tick() time.Duration {
	d := w.debounce() / 5
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}

func (w *Watcher) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}
