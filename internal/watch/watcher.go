package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/wdir/internal/logger"
)

// Triggerer receives events from the watcher. *Bus implements it.
type Triggerer interface {
	Trigger(kind Kind, path string) int
}

// Watcher feeds fsnotify events for a directory tree into a Triggerer.
type Watcher struct {
	target  Triggerer
	log     *logger.Logger
	ignore  *Ignore
	initial bool

	mu    sync.Mutex
	fsw   *fsnotify.Watcher
	root  string
	dirs  map[string]bool
	ready chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore replaces the default ignore patterns.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = NewIgnore(patterns...)
	}
}

// WithInitialAdd controls whether files present at startup are reported as
// add events. Enabled by default.
func WithInitialAdd(enabled bool) Option {
	return func(w *Watcher) {
		w.initial = enabled
	}
}

// NewWatcher creates a watcher that reports to target.
func NewWatcher(target Triggerer, log *logger.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		target:  target,
		log:     log,
		ignore:  NewIgnore(DefaultIgnore...),
		initial: true,
		dirs:    make(map[string]bool),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once the initial scan has finished and events are being
// watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches root recursively until ctx is done.
func (w *Watcher) Run(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	w.mu.Lock()
	w.fsw = fsw
	w.root = abs
	w.mu.Unlock()

	w.addTree(abs, w.initial)
	close(w.ready)
	w.log.Debug("Watching", "root", abs, "dirs", w.dirCount())

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watch error", "err", err)
		}
	}
}

// addTree watches every directory under dir. When emit is set, files found
// are reported as add events.
func (w *Watcher) addTree(dir string, emit bool) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(p, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				w.log.Warn("Cannot watch directory", "dir", p, "err", err)
				return nil
			}
			w.mu.Lock()
			w.dirs[p] = true
			w.mu.Unlock()
			return nil
		}
		if emit {
			w.target.Trigger(Add, p)
		}
		return nil
	})
}

// handle maps one fsnotify event onto bus kinds.
func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if w.ignored(path, info.IsDir()) {
			return
		}
		if info.IsDir() {
			w.addTree(path, true)
			return
		}
		w.target.Trigger(Add, path)

	case ev.Has(fsnotify.Write):
		if w.isDir(path) || w.ignored(path, false) {
			return
		}
		w.target.Trigger(Change, path)

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.forgetDir(path) {
			return
		}
		if w.ignored(path, false) {
			return
		}
		w.target.Trigger(Unlink, path)
	}
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return w.ignore.Match(rel, isDir)
}

func (w *Watcher) isDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirs[path]
}

// forgetDir drops path and its subdirectories from the watched set. It
// reports whether path was a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

func (w *Watcher) dirCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}
