// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/uiverify/internal/utils"
)

// reloadDebounce collapses the burst of events editors emit for one save
const reloadDebounce = 150 * time.Millisecond

// Watcher reloads a scenario file whenever it changes on disk
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	logger   utils.Logger
	onChange []func(*Scenario)
	onError  []func(error)
	mu       sync.RWMutex
	timer    *time.Timer
	stopped  bool
	done     chan struct{}
}

// NewWatcher starts watching the scenario at path
func NewWatcher(path string, logger utils.Logger) (*Watcher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		logger:  logger,
		done:    make(chan struct{}),
	}

	// The directory is watched rather than the file so atomic renames by editors are seen.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch scenario directory %s: %w", dir, err)
	}

	go w.watch()
	return w, nil
}

// OnChange registers a callback receiving each successfully reloaded scenario
func (w *Watcher) OnChange(callback func(*Scenario)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, callback)
}

// OnError registers a callback receiving reload failures
func (w *Watcher) OnError(callback func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = append(w.onError, callback)
}

func (w *Watcher) watch() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("scenario watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return
	}
	onChange := append([]func(*Scenario){}, w.onChange...)
	onError := append([]func(error){}, w.onError...)
	w.mu.RUnlock()

	sc, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warnf("failed to reload scenario %s: %v", w.path, err)
		for _, cb := range onError {
			cb(err)
		}
		return
	}

	w.logger.Infof("scenario %s reloaded", sc.Name)
	for _, cb := range onChange {
		cb(sc)
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}
