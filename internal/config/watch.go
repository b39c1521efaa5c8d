package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/cookiedrop/kitchenhub/internal/logging"
)

// Watch reloads the config file at path whenever it is written and passes the
// result to onChange. A reload that fails to parse or validate is logged and
// the previous config stays active. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that rename
// a temp file over the config keep being seen.
func Watch(ctx context.Context, path string, logger *logging.Logger, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("watching config for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename over the config shows up as Create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(LoadOptions{Path: target})
			if err != nil {
				logger.Error("config reload failed, keeping previous config", "path", target, "error", err)
				continue
			}

			logger.Info("config reloaded", "path", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err)
		}
	}
}
