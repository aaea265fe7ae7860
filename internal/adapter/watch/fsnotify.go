// Package watch reports dataset file changes using fsnotify.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"nlu/internal/port"
)

// Matcher reports whether a path relative to the watched root is of
// interest.
type Matcher func(relPath string) bool

// FSNotifyWatcher implements port.FileWatcher using fsnotify. Every
// directory under the root is watched.
type FSNotifyWatcher struct {
	watcher *fsnotify.Watcher
	match   Matcher
	log     *slog.Logger
}

// NewFSNotifyWatcher creates a watcher. A nil match accepts .json files.
func NewFSNotifyWatcher(match Matcher, logger *slog.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if match == nil {
		match = func(relPath string) bool { return filepath.Ext(relPath) == ".json" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSNotifyWatcher{
		watcher: w,
		match:   match,
		log:     logger.With("component", "watcher"),
	}, nil
}

// Watch starts monitoring dir and emits events until ctx is done.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan port.FileEvent, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := w.addTree(root); err != nil {
		return nil, err
	}

	events := make(chan port.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == fsnotify.Create && isDir(event.Name) {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}

				rel, err := filepath.Rel(root, event.Name)
				if err != nil || !w.match(filepath.ToSlash(rel)) {
					continue
				}

				var op port.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = port.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = port.FileModified
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					op = port.FileDeleted
				default:
					continue
				}

				select {
				case events <- port.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("watch error", "error", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && (name == ".git" || name == ".nlu" || name == "node_modules") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
