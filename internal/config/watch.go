package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads config.json when it changes on disk and notifies callbacks.
// The base directory is watched rather than the file, since editors usually
// replace files with a rename.
type Watcher struct {
	baseDir  string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
	timer     *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher seeded with the given config.
func NewWatcher(baseDir string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		baseDir:  baseDir,
		watcher:  fw,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		current:  initial,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Get returns the most recently loaded configuration.
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start begins watching the base directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.baseDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.baseDir, err)
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching config", zap.String("path", filepath.Join(w.baseDir, FileName)))
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// schedule debounces bursts of events into a single reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}

	cfg, err := Load(w.baseDir)
	if err != nil {
		// Keep serving the previous config; a half-written file is common mid-save.
		w.logger.Warn("config reload failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("config reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
}
