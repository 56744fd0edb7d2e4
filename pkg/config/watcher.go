package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

// Watcher watches the config file for changes and applies the log level to
// the running shell without a restart. Only log.level is hot-reloaded;
// everything else requires a new session.
type Watcher struct {
	manager *Manager
	path    string

	// watcher is the fsnotify file watcher
	watcher *fsnotify.Watcher

	// debounceDelay is the time to wait before reloading after a change
	// (prevents multiple reloads for rapid successive writes)
	debounceDelay time.Duration

	logger zerolog.Logger

	// mu protects the debounce timer
	mu            sync.Mutex
	debounceTimer *time.Timer

	// onLevel is invoked with the new level after a successful reload
	onLevel func(level string)
}

// NewWatcher creates a config file watcher. onLevel is called with the
// reloaded log level after it has been validated and stored.
func NewWatcher(manager *Manager, path string, logger zerolog.Logger, onLevel func(level string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		manager:       manager,
		path:          path,
		watcher:       fsw,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "config.watcher").Logger(),
		onLevel:       onLevel,
	}, nil
}

// Start begins watching the config file. It blocks until the context is
// canceled and should be run in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify requires watching directories, not files directly
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("failed to watch config directory")
		return err
	}

	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watch error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	k := koanf.New(".")
	if err := k.Load(file.Provider(w.path), yaml.Parser()); err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}

	level := cast.ToString(k.Get("log.level"))
	if level == "" || level == w.manager.Get().Log.Level {
		return
	}
	if err := w.manager.SetLogLevel(level); err != nil {
		w.logger.Warn().Err(err).Msg("rejecting reloaded log level")
		return
	}

	w.logger.Info().Str("level", level).Msg("log level reloaded from config file")
	if w.onLevel != nil {
		w.onLevel(level)
	}
}
