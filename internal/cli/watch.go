package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// WatchFile sends on the returned channel when the content of path changes.
// Bursts of events are coalesced for settle before the file is read, and writes
// that leave the content unchanged are ignored. The channel is closed when ctx
// is done.
func WatchFile(ctx context.Context, path string, settle time.Duration, logger *slog.Logger) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory, not the file: editors save by renaming a new file over the old one.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()

		last, _ := digest(abs)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs ||
					!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
					continue
				}
				logger.Debug("graph file event", "file", event.Name, "op", event.Op.String())
				if timer == nil {
					timer = time.NewTimer(settle)
				} else {
					timer.Reset(settle)
				}
				fire = timer.C
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "err", err)
			case <-fire:
				fire = nil
				sum, err := digest(abs)
				if err != nil || sum == last {
					// Missing mid-replace, or rewritten unchanged
					continue
				}
				last = sum
				select {
				case changes <- struct{}{}:
				default:
					// A reload is already pending
				}
			}
		}
	}()
	return changes, nil
}

func digest(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
