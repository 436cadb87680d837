package rules

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the rule set when the user override file changes.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(Set)
}

// NewWatcher watches the override file's directory (so the file may be
// created after startup) and calls onReload with the freshly loaded set on
// every relevant change.
func NewWatcher(path string, onReload func(Set)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch rules directory: %w", err)
	}
	return &Watcher{path: path, watcher: w, onReload: onReload}, nil
}

// Run processes watch events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Printf("detection rules override changed (%s), reloading", event.Op)
			w.onReload(Load(w.path))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("warning: rules watcher error: %v", err)
		}
	}
}
