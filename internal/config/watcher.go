package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback is called with the freshly loaded config after the file changes
type ReloadCallback func(cfg *Config)

// Watcher monitors the config file and reloads the allowlist on change.
// Only the Telegram allowlist is applied live; everything else requires a
// daemon restart.
type Watcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	onReload   ReloadCallback
	done       chan struct{}
	debounce   *time.Timer
	debounceMu sync.Mutex
	stopOnce   sync.Once
}

// NewWatcher creates a config file watcher
func NewWatcher(configPath string, onReload ReloadCallback) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:    fw,
		configPath: configPath,
		onReload:   onReload,
		done:       make(chan struct{}),
	}, nil
}

// Start starts watching the config file's directory. Watching the directory
// instead of the file survives editors that replace the file on save.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.eventLoop()

	log.Info().Str("path", w.configPath).Msg("Config watcher started")
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload debounces bursts of write events into one reload
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(200*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	if err := ValidateFile(w.configPath); err != nil {
		log.Error().Err(err).Msg("Config change rejected")
		return
	}

	cfg, err := Load(w.configPath)
	if err != nil {
		log.Error().Err(err).Msg("Config reload failed")
		return
	}

	log.Info().Int("allowlist", len(cfg.Telegram.Allowlist)).Msg("Config reloaded")

	if w.onReload != nil {
		w.onReload(cfg)
	}
}
