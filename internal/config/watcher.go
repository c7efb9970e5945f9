package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the configuration file and re-applies runtime-tunable
// settings on change. Only the log level is hot-reloadable; anything else
// requires a restart and is logged as such.
type Watcher struct {
	configPath   string
	levelVar     *slog.LevelVar
	current      *Config
	watcher      *fsnotify.Watcher
	mu           sync.RWMutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a configuration file watcher.
func NewWatcher(configPath string, current *Config, levelVar *slog.LevelVar) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Resolve absolute path for consistent watching
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		configPath:   absPath,
		levelVar:     levelVar,
		current:      current,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring the configuration file.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Watch the containing directory; editors replace files rather than
	// writing in place, which a direct file watch misses.
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	slog.Info("starting configuration watcher", "config_path", w.configPath)

	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)

	return nil
}

// Stop stops the configuration watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	close(w.stopChan)
	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			slog.Error("error closing file watcher", "error", err)
		}
	}
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(w.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write,
				event.Op&fsnotify.Create == fsnotify.Create,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				w.triggerReload()
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				slog.Warn("config file removed", "file", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-w.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-w.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.debounceTime, func() {
				if err := w.performReload(); err != nil {
					slog.Error("failed to reload configuration", "error", err)
				}
			})
		}
	}
}

// triggerReload coalesces rapid file events into one pending reload.
func (w *Watcher) triggerReload() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
	}
}

func (w *Watcher) performReload() error {
	slog.Info("reloading configuration", "config_path", w.configPath)

	newConfig, err := Load(w.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}

	w.mu.Lock()
	old := w.current
	w.current = newConfig
	w.mu.Unlock()

	if newConfig.Logging.Level != old.Logging.Level {
		w.levelVar.Set(SlogLevel(NormalizeLogLevel(newConfig.Logging.Level)))
		slog.Info("log level updated", "level", newConfig.Logging.Level)
	}
	if newConfig.Server.Port != old.Server.Port || newConfig.Storage.DatabasePath != old.Storage.DatabasePath {
		slog.Warn("server or storage changes require a restart to take effect")
	}

	slog.Info("configuration reloaded")
	return nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
