package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces editor write bursts into one reload
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the routing config when the file changes on disk.
// A reload that fails validation is logged and discarded; the previous
// configuration stays live.
type Watcher struct {
	path     string
	onChange func(*RoutingConfig)
	logger   *zap.Logger
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for the routing config at path. onChange is
// called with each successfully loaded config.
func NewWatcher(path string, onChange func(*RoutingConfig), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which drops
	// watches placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
		fw:       fw,
	}, nil
}

// Start launches the watch loop and returns immediately. The loop runs
// until ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("routing config watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) reload() {
	cfg, err := LoadRoutingConfig(w.path)
	if err != nil {
		w.logger.Error("routing config reload rejected, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	w.logger.Info("routing config reloaded",
		zap.String("path", w.path),
		zap.Int("models", len(cfg.Models)),
		zap.Int("rules", len(cfg.RoutingRules)))

	w.onChange(cfg)
}
