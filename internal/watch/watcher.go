// Package watch re-imports post files as they change on disk.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mathblog/internal/content"
	"mathblog/internal/db"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Applier re-reads the named paths, relative to the posts root. A path may
// name a post file or a directory that has gone away.
type Applier interface {
	Apply(ctx context.Context, paths []string) (db.SyncResult, error)
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Batches       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	root        string
	applier     Applier
	logger      *zap.Logger
	debounceDur time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher for every directory under root. debounce of zero
// selects the default of 500ms.
func New(root string, applier Applier, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:     fw,
		root:        root,
		applier:     applier,
		logger:      logger,
		debounceDur: debounce,
		pending:     make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled on a
// goroutine until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return err
	}
	w.logger.Info("watching posts", zap.String("root", w.root))

	go w.run(ctx)
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing watcher", zap.Error(err))
	}
	w.logger.Info("stopped watching posts")
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDir(event.Name)
			return
		}
	}

	switch {
	case content.IsPostFile(event.Name):
		if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
			!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
			return
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// Possibly a directory leaving the tree; the applier drops its posts.
	default:
		return
	}

	w.queue(event.Name)
	w.logger.Debug("post file event", zap.String("path", event.Name), zap.Stringer("op", event.Op))
}

// addDir watches a directory that appeared in the tree and queues the post
// files it already holds.
func (w *Watcher) addDir(dir string) {
	if err := w.addTree(dir); err != nil {
		w.logger.Warn("watching new directory", zap.String("path", dir), zap.Error(err))
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if content.IsPostFile(path) {
			w.queue(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("scanning new directory", zap.String("path", dir), zap.Error(err))
	}
}

func (w *Watcher) queue(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return
	}

	now := time.Now()
	w.mu.Lock()
	w.pending[rel] = now
	w.stats.Events++
	w.stats.LastEventPath = rel
	w.stats.LastEventTime = now
	w.mu.Unlock()
}

// flush applies every pending path that has been quiet for the debounce
// window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var paths []string

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			paths = append(paths, path)
			delete(w.pending, path)
		}
	}
	if len(paths) > 0 {
		w.stats.Batches++
	}
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	if _, err := w.applier.Apply(ctx, paths); err != nil {
		w.logger.Error("applying post changes", zap.Strings("paths", paths), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	}
}
