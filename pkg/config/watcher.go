package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// Watcher reloads a configuration file whenever it changes.
type Watcher struct {
	loader  *Loader
	path    string
	delay   time.Duration
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
}

// NewWatcher creates a watcher for path. The file is loaded once immediately.
func NewWatcher(loader *Loader, path string, logger zerolog.Logger) (*Watcher, error) {
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		loader:  loader,
		path:    path,
		delay:   DefaultReloadDelay,
		logger:  logger.With().Str("component", "config-watcher").Str("path", path).Logger(),
		current: cfg,
	}, nil
}

// SetReloadDelay changes the debounce delay.
func (w *Watcher) SetReloadDelay(d time.Duration) {
	if d > 0 {
		w.delay = d
	}
}

// Current returns the last successfully loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Watch starts watching the file and calls reloadFn with every configuration
// that loads cleanly. Invalid edits are logged and the previous configuration
// stays current. Watching stops when ctx is done.
func (w *Watcher) Watch(ctx context.Context, reloadFn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors often replace the file, so watch the directory and filter.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	go w.processEvents(ctx, reloadFn)

	w.logger.Info().Msg("Started watching config file")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, reloadFn func(*Config)) {
	var reloadTimer *time.Timer
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().Str("op", event.Op.String()).Msg("Config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				w.reload(reloadFn)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(reloadFn func(*Config)) {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload config, keeping previous")
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info().Msg("Config reloaded")
	if reloadFn != nil {
		reloadFn(cfg)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
