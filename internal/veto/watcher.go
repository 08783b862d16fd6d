package veto

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Filter's phrase list whenever its YAML file changes.
// A file that fails to parse leaves the previous list in place.
type Watcher struct {
	filter   *Filter
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher watches path's directory so editors that replace the file are seen.
func NewWatcher(filter *Filter, path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		filter:   filter,
		path:     filepath.Clean(path),
		watcher:  fw,
		logger:   logger,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Debug("failed to close phrase watcher", "error", err)
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("phrase watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	phrases, err := LoadPhrases(w.path)
	if err != nil {
		w.logger.Error("Failed to reload veto phrases, keeping previous list", "path", w.path, "error", err)
		return
	}
	w.filter.Replace(phrases)
	w.logger.Info("Veto phrases reloaded", "path", w.path, "count", len(phrases))
}
