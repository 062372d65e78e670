package skill

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch re-discovers the catalog whenever a search path changes. It blocks
// until the context is cancelled. Watching is best-effort: paths that
// cannot be watched and discovery failures are logged, never returned.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range r.searchPaths {
		if err := watcher.Add(root); err != nil {
			r.logger.Warn("cannot watch skill path", "path", root, "error", err)
		}
	}

	// Debounce bursts of filesystem events into a single rescan.
	var timer *time.Timer
	rescan := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(200*time.Millisecond, func() {
			select {
			case rescan <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("skill watcher error", "error", err)
		case <-rescan:
			if err := r.Discover(); err != nil {
				r.logger.Warn("skill re-discovery failed", "error", err)
			}
		}
	}
}
