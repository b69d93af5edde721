package predictor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the artifacts whenever one of the required files changes in
// the artifact directory. Bursts of events within debounce trigger one reload.
// It returns once the watcher is running; ctx stops it.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	cfg := s.loader.Config()
	dir := cfg.ResolvedDir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	watched := make(map[string]bool)
	for _, name := range cfg.RequiredFiles() {
		watched[name] = true
	}

	go func() {
		defer watcher.Close()
		var reload <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[filepath.Base(event.Name)] {
					continue
				}
				s.logger.Debug("artifact changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
				reload = time.After(debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("artifact watcher error", zap.Error(err))
			case <-reload:
				reload = nil
				if err := s.Load(); err == nil {
					s.logger.Info("artifacts reloaded after change")
				}
			}
		}
	}()

	s.logger.Info("watching artifact directory", zap.String("dir", dir))
	return nil
}
