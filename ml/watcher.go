package ml

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Watcher reloads the artifact set when any of its files changes on disk.
// A set that fails to load is logged and the previous one stays in service.
type Watcher struct {
	paths    ArtifactPaths
	registry *Registry
	logger   *zap.Logger
	debounce time.Duration
	onReload func(*Artifacts)
}

// NewWatcher returns a Watcher that installs reloaded artifacts into registry.
func NewWatcher(paths ArtifactPaths, registry *Registry, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		paths:    paths,
		registry: registry,
		logger:   logger.Named("artifact-watcher"),
		debounce: defaultReloadDebounce,
	}
}

// OnReload registers fn to run after a new artifact set is installed.
func (w *Watcher) OnReload(fn func(*Artifacts)) {
	w.onReload = fn
}

// Run watches the artifact directories until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range w.paths.All() {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching model artifacts", zap.Strings("paths", w.paths.All()))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	artifacts, err := LoadArtifacts(w.paths)
	if err != nil {
		w.logger.Error("reload failed, keeping current artifacts", zap.Error(err))
		return
	}
	if current := w.registry.Current(); current != nil && current.Version == artifacts.Version {
		return
	}
	previous := w.registry.Swap(artifacts)
	fields := []zap.Field{zap.String("version", artifacts.Version)}
	if previous != nil {
		fields = append(fields, zap.String("previous", previous.Version))
	}
	w.logger.Info("model artifacts reloaded", fields...)
	if w.onReload != nil {
		w.onReload(artifacts)
	}
}
