package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kotadb/kotadb/internal/observability"
)

// Watcher debounces filesystem change notifications under root into a single
// OnChange call, so a burst of writes from a checkout or an editor's save
// triggers one re-ingest instead of one per touched file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	logger   *observability.Logger

	// OnChange is invoked (from the debounce timer's goroutine) once debounce
	// has elapsed since the last event with no further events arriving.
	OnChange func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
}

// NewWatcher builds a Watcher over root with debounce controlling how long a
// quiet period must last before OnChange fires. debounce <= 0 is normalized
// to 500ms.
func NewWatcher(root string, debounce time.Duration, logger *observability.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w := &Watcher{fsw: fsw, root: root, debounce: debounce, logger: logger}
	if err := w.addDirs(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addDirs recursively registers every directory under root with fsnotify —
// fsnotify only watches the directories it's told about, not their children.
func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run processes fsnotify events until ctx is cancelled. It is meant to run in
// its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.InfoContext(ctx, "watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDirs(event.Name)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.OnChange != nil {
			w.OnChange()
		}
	})
}
