package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces the burst of events an editor produces on save.
const DebounceDelay = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands the new
// config to registered callbacks. A file that fails to load is logged and
// ignored.
type Watcher struct {
	path string
	log  logs.Log

	fs *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []func(*Config)
	timer     *time.Timer
	closed    bool
	done      chan struct{}
}

// NewWatcher starts watching path. The containing directory is watched so
// that editors which replace the file by rename are seen too. The directory
// is created when missing, so a config file written later is still picked up.
func NewWatcher(path string, log logs.Log) (*Watcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path: filepath.Clean(path),
		log:  log,
		fs:   fw,
		done: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers fn. Callbacks run on the watcher goroutine.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warnf("Config watch error: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(DebounceDelay, w.reload)
}

func (w *Watcher) reload() {
	if w.isClosed() {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.log.Errorf("Failed to reload config: %v", err)
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	w.log.Infof("Configuration reloaded from %s", w.path)
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func (w *Watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fs.Close()
	<-w.done
	return err
}
