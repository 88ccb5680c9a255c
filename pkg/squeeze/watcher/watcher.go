// Package watcher re-runs optimization when a media tree changes.
//
// Directories are watched recursively; new directories are picked up as
// they appear. Events are debounced: a run starts only after the tree has
// been quiet for the debounce period. Files rewritten by a run produce
// events of their own, so a run is usually followed by one more that finds
// nothing to do.
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

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
)

// Trigger performs one run.
type Trigger func(ctx context.Context) error

// Watcher watches a directory tree for changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	paths    map[string]bool
	mu       sync.RWMutex
	closed   bool
	log      *logging.Logger
}

// New creates a Watcher that waits debounce after the last event before
// triggering.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 30 * time.Second
	}

	return &Watcher{
		watcher:  fsw,
		debounce: debounce,
		paths:    make(map[string]bool),
		log:      logging.Get("watcher"),
	}, nil
}

// Watch adds root and every non-hidden directory below it.
// Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.addWatch(filepath.Dir(absRoot))
	}

	return w.addTree(absRoot)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

// Run waits for changes and calls trigger after each quiet period. It
// blocks until ctx is cancelled or trigger fails, returning trigger's error.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.log.Info("changes settled, starting run")
			if err := trigger(ctx); err != nil {
				return err
			}
		}
	}
}

// handleEvent updates watches and reports whether the event is relevant.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if ignored(event.Name) {
		return false
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() && info.Mode()&fs.ModeSymlink == 0 {
			_ = w.addTree(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	case event.Op&fsnotify.Write == 0:
		return false
	}

	w.log.Debug("change detected", "path", event.Name, "op", event.Op.String())
	return true
}

// forget drops the watches of a removed directory and its children.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// ignored reports whether path names a hidden entry, such as the manifest
// directory or an optimizer temp file.
func ignored(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
