package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelrail/go-trackside/logger"
)

const reloadDebounce = 100 * time.Millisecond

// watchConfig watches the config file and re-applies the log_level setting
// when the file changes. Link and hardware settings stay fixed until the
// daemon restarts. The returned function stops the watcher.
func watchConfig(ctx context.Context, cfgFile string, changed map[string]bool, log logger.Logger) func() {
	if cfgFile == "" || changed["log-level"] {
		return func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watcher not started", "error", err)
		return func() {}
	}

	// watch the directory, editors often replace the file atomically
	if err := watcher.Add(filepath.Dir(cfgFile)); err != nil {
		log.Warn("config watcher not started", "path", cfgFile, "error", err)
		_ = watcher.Close()

		return func() {}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer watcher.Close()

		var debounce *time.Timer

		for {
			select {
			case <-watchCtx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(cfgFile) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					reloadLogLevel(cfgFile, log)
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func reloadLogLevel(cfgFile string, log logger.Logger) {
	fc, err := loadFileConfig(cfgFile)
	if err != nil {
		log.Warn("config reload failed", "path", cfgFile, "error", err)
		return
	}

	if fc.LogLevel == "" {
		return
	}

	level := parseLogLevel(fc.LogLevel)
	if level == log.Level() {
		return
	}

	logger.SetLevel(level)
	log.Info("log level changed", "level", fc.LogLevel)
}
