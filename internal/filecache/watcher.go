package filecache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Invalidator is anything that can drop its cached state.
type Invalidator interface {
	Invalidate()
}

// Watcher invalidates registered caches when their backing files change on
// disk. It only shortens the staleness window: the modification-time check in
// File remains authoritative, so a missed event costs nothing but latency.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	targets map[string][]Invalidator
	dirs    map[string]bool
}

// NewWatcher creates a watcher with no registered files.
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher: fw,
		logger:  logger,
		targets: make(map[string][]Invalidator),
		dirs:    make(map[string]bool),
	}, nil
}

// Add registers path so that changes to it invalidate target. The parent
// directory is watched rather than the file, since atomic renames replace the
// inode and would silently end a per-file watch.
func (w *Watcher) Add(path string, target Invalidator) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		w.dirs[dir] = true
		w.logger.Info("file watcher initialized", zap.String("dir", dir))
	}
	w.targets[abs] = append(w.targets[abs], target)
	return nil
}

// Run processes events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	w.logger.Info("file watcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	targets := w.targets[abs]
	w.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	w.logger.Info("file changed, invalidating cache", zap.String("path", abs), zap.String("op", event.Op.String()))
	for _, t := range targets {
		t.Invalidate()
	}
}
