package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sitesentry/livesync/internal/logger"
)

// debounceWindow coalesces the write bursts editors produce on save.
const debounceWindow = 250 * time.Millisecond

// Watch reloads the config file on change and calls onReload with each new
// valid configuration. Invalid or unreadable versions are logged and
// skipped, keeping the last good config in effect. Watch blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, log logger.Logger, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save and
	// a file watch dies with the old inode.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload failed, keeping previous config",
				logger.String("path", path),
				logger.Error(err),
			)
			return
		}
		log.Info("config reloaded", logger.String("path", path))
		onReload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logger.Error(err))
		}
	}
}
