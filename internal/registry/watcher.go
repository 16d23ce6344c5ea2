// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events into one refresh.
// Editors typically emit several writes per save.
const watchDebounce = 500 * time.Millisecond

// WatchManifest refreshes the registry whenever a local manifest file
// changes. It returns immediately when the manifest source is not a local
// file. The watcher stops when ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// rename-based saves (write temp, rename over) keep working.
func (r *Registry) WatchManifest(ctx context.Context, onRefresh func(Result, error)) error {
	if !r.cfg.ManifestIsLocalFile() {
		return nil
	}

	path, err := filepath.Abs(r.cfg.Sources.ManifestURL)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go r.watchLoop(ctx, watcher, path, onRefresh)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, onRefresh func(Result, error)) {
	defer watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("manifest watcher error", "error", err)

		case <-timerCh:
			timerCh = nil
			timer = nil
			r.logger.Info("manifest changed, refreshing models", "path", path)
			result, err := r.Refresh(ctx)
			if onRefresh != nil {
				onRefresh(result, err)
			}
		}
	}
}
