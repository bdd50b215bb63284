// Package watcher feeds a dataset from a watched directory: files dropped
// into the directory are ingested after their writes settle, and deleted
// files have their chunks removed.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Directory is the root to watch, recursively.
	Directory string
	// Extensions filters which files trigger callbacks (empty = all).
	Extensions []string
	// Debounce is how long a file must be quiet before OnFile fires.
	// Zero means the default of 400ms.
	Debounce time.Duration
}

// Watcher watches a directory tree and invokes callbacks once file writes
// have settled. Rapid successive writes to the same file collapse into one
// OnFile call.
type Watcher struct {
	opts     Options
	onFile   func(path string)
	onRemove func(path string)
	logger   *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over opts.Directory. onFile is called with
// the path of each settled file matching the extension filter; onRemove with
// each deleted matching file.
func NewWatcher(opts Options, onFile, onRemove func(path string), logger *zap.Logger) *Watcher {
	if opts.Debounce == 0 {
		opts.Debounce = defaultDebounce
	}
	return &Watcher{
		opts:     opts,
		onFile:   onFile,
		onRemove: onRemove,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The directory is created if it does not exist. The
// watcher runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.opts.Directory, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	if err := w.watchTreeLocked(w.opts.Directory); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		w.mu.Unlock()
		return err
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching directory",
		zap.String("directory", w.opts.Directory),
		zap.Strings("extensions", w.opts.Extensions))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// A directory moved in whole carries files that produce no
			// events of their own, so walk it.
			w.mu.Lock()
			if w.fsw != nil {
				_ = w.watchTreeLocked(path)
			}
			w.mu.Unlock()
			w.syncTree(path)
			return
		}
		if w.matches(path) {
			w.schedule(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancel(path)
		if w.matches(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.opts.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// schedule arms (or re-arms) the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.onFile != nil {
			w.onFile(path)
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) watchTreeLocked(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) syncTree(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) {
			w.schedule(path)
		}
		return nil
	})
}

// SyncExisting schedules every matching file already present under the
// watched directory, so a restart picks up files dropped while the service
// was down.
func (w *Watcher) SyncExisting() {
	w.syncTree(w.opts.Directory)
}

// Stop stops the watcher and cancels pending settle timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
