package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the configuration file and reloads it on change.
// Only the engine tuning section is hot-reloadable; connection settings
// require a restart and a changed value there is logged but ignored.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *Config
	mu       sync.RWMutex
	onChange []func(*Config)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewWatcher loads the initial configuration and starts watching the
// file and its directory (atomic saves arrive as renames)
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    path,
		watcher: watcher,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	// Editors produce bursts of writes; coalesce them before reloading
	var debounceTimer *time.Timer
	const debounce = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounce, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	newConfig, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	oldConfig := w.current
	w.current = newConfig
	handlers := w.onChange
	w.mu.Unlock()

	if oldConfig.SupabaseURL != newConfig.SupabaseURL {
		w.logger.Warn("supabase_url changed on disk; a restart is required for it to take effect")
	}
	if oldConfig.Engine != newConfig.Engine {
		w.logger.Info("engine tuning reloaded",
			zap.Int("max_history", newConfig.Engine.MaxHistory),
			zap.Duration("history_debounce", newConfig.Engine.HistoryDebounce),
			zap.Duration("position_flush_window", newConfig.Engine.PositionFlushWindow),
		)
	}

	for _, handler := range handlers {
		go handler(newConfig)
	}
}

// OnChange registers a callback invoked after each successful reload
func (w *Watcher) OnChange(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the most recently loaded configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
