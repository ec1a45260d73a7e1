// Package watcher reloads the record schema when its file changes on disk.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 250 * time.Millisecond

type Reloader interface {
	Reload() error
}

type Watcher struct {
	watcher  *fsnotify.Watcher
	reloader Reloader
	path     string
	debounce time.Duration
	running  bool
	mu       sync.Mutex
	done     chan struct{}
	timer    *time.Timer
}

func New(reloader Reloader, schemaPath string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to create watcher", err)
	}

	return &Watcher{
		watcher:  w,
		reloader: reloader,
		path:     filepath.Clean(schemaPath),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the schema file, so editors that
// replace the file by rename are still seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if w.watcher == nil {
		newWatcher, err := fsnotify.NewWatcher()
		if err != nil {
			return errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to create watcher", err)
		}
		w.watcher = newWatcher
		w.done = make(chan struct{})
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeWatcherFailed, "failed to watch "+dir, err)
	}

	w.running = true
	go w.eventLoop(w.watcher, w.done)
	log.Infof("watching schema %s", w.path)
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	log.Infof("watcher stopped")
	return err
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) eventLoop(fw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	log.Infof("schema %s changed, reloading", w.path)
	if err := w.reloader.Reload(); err != nil {
		log.Errorf("schema reload failed: %v", err)
	}
}
