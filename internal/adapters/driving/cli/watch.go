package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/verselens-cli/internal/logger"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 500 * time.Millisecond

// watchFile calls run each time path changes, until ctx is cancelled.
// The parent directory is watched so editors that replace the file on save
// are still seen.
func watchFile(ctx context.Context, path string, run func(context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return watchLoop(ctx, w.Events, w.Errors, path, watchDebounce, run)
}

// watchLoop debounces write and create events for path and calls run after
// each quiet period. It returns when ctx is done or events is closed.
func watchLoop(
	ctx context.Context,
	events <-chan fsnotify.Event,
	errs <-chan error,
	path string,
	debounce time.Duration,
	run func(context.Context),
) error {
	target := filepath.Clean(path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("watch: %s", event)
			pending = time.After(debounce)

		case <-pending:
			pending = nil
			run(ctx)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error: %v", err)
		}
	}
}
