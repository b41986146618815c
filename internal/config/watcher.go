package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// fileWatcher watches one file's containing directory (not the file itself,
// since editors commonly replace a file via rename rather than write-in-
// place) and calls onChange, debounced, whenever the watched path is
// created, written, removed, or renamed.
type fileWatcher struct {
	path     string
	onChange func()
	log      *slog.Logger
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newFileWatcher(path string, onChange func(), log *slog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &fileWatcher{
		path:     abs,
		onChange: onChange,
		log:      log,
		watcher:  fw,
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *fileWatcher) loop() {
	for {
		select {
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
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != w.path {
		return
	}
	w.scheduleReload()
}

func (w *fileWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.onChange)
}

func (w *fileWatcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}
