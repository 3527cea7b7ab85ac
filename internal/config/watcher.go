package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/logging"
)

// Watcher reloads the YAML config file on disk whenever it changes
// and notifies every registered callback with the freshly loaded
// Config. A reload that fails to parse is logged and discarded; the
// last good Config keeps serving.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
	debounce  time.Duration
}

// NewWatcher loads path once and wraps it in a file watcher, ready
// to Start.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsWatcher,
		path:     path,
		current:  cfg,
		debounce: 500 * time.Millisecond,
	}, nil
}

// OnChange registers a callback invoked with the new Config after
// every successful reload.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start watches the config file's directory and begins reloading on
// write/create events. path may not exist as a standalone watch
// target across editors that replace-on-save, so the directory is
// watched instead and events are filtered by basename.
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Error("failed to reload config, keeping previous config", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	logging.Info("configuration reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		go cb(cfg)
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
