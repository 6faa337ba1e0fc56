// Package watch re-triggers runs when files under the watched workspace
// directories change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lazyweave/internal/logging"
)

const DefaultDebounce = 200 * time.Millisecond

// DefaultIgnore lists directory names never watched: tool state, installed
// packages and VCS metadata.
var DefaultIgnore = []string{".lazy", "node_modules", ".git"}

// Option customises a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period that ends a burst of changes.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore replaces the ignored directory names.
func WithIgnore(names ...string) Option {
	return func(w *Watcher) {
		w.ignore = make(map[string]bool, len(names))
		for _, n := range names {
			w.ignore[n] = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches directory trees recursively and reports debounced bursts
// of changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   map[string]bool
	logger   *slog.Logger

	mu        sync.Mutex
	dirs      map[string]bool
	closeOnce sync.Once
}

// New watches every directory below roots, skipping ignored names.
func New(roots []string, opts ...Option) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("no directories to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		logger:   logging.Discard(),
		dirs:     make(map[string]bool),
	}
	WithIgnore(DefaultIgnore...)(w)
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) addTree(root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		return w.add(p)
	})
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// ignored reports whether path lies inside an ignored directory.
func (w *Watcher) ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

// Run blocks until ctx is done, calling onChange with the sorted changed
// paths once no change has arrived for the debounce period. Changes made
// while onChange runs start the next burst. An onChange error ends Run.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string) error) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Debug("change burst", "paths", len(paths))
			if err := onChange(ctx, paths); err != nil {
				return err
			}
		}
	}
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fsw.Close() })
	return err
}
