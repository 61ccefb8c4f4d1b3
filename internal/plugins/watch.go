package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/plugspan/internal/lifespan"
)

// watcherSlot holds the current watcher so the task can replace a dead
// one while teardown still closes whichever is live.
type watcherSlot struct {
	mu sync.Mutex
	w  *fsnotify.Watcher
}

func (s *watcherSlot) get() *fsnotify.Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w
}

func (s *watcherSlot) set(w *fsnotify.Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// Watch returns a plugin that watches path for filesystem events and
// publishes the affected paths on WatchTopic. pattern filters events by
// glob match against the full path; empty matches everything. A watcher
// that dies underneath the task is reopened with exponential backoff.
func Watch(pctx *Context, path, pattern string) lifespan.Plugin {
	return lifespan.Func("watch", func(ctx context.Context) (lifespan.TaskFunc, lifespan.TeardownFunc, error) {
		logger := pctx.Logger.WithPlugin("watch")

		var matcher glob.Glob
		if pattern != "" {
			m, err := glob.Compile(pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid watch glob %q: %w", pattern, err)
			}
			matcher = m
		}

		watcher, err := openWatcher(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		slot := &watcherSlot{w: watcher}
		logger.Debug("watching", "path", path, "glob", pattern)

		reopen := func(ctx context.Context) error {
			_ = slot.get().Close()
			w, err := openWatcher(ctx, path)
			if err != nil {
				return err
			}
			slot.set(w)
			logger.Warn("watcher reopened", "path", path)
			return nil
		}

		task := func(ctx context.Context) error {
			for {
				w := slot.get()
				select {
				case <-ctx.Done():
					return ctx.Err()

				case ev, ok := <-w.Events:
					if !ok {
						if err := reopen(ctx); err != nil {
							if ctx.Err() != nil {
								return ctx.Err()
							}
							return err
						}
						continue
					}
					if matcher != nil && !matcher.Match(ev.Name) {
						continue
					}
					logger.Debug("filesystem event", "op", ev.Op.String(), "path", ev.Name)
					pctx.Hub.Publish(WatchTopic, ev.Name)

				case werr, ok := <-w.Errors:
					if !ok {
						if err := reopen(ctx); err != nil {
							if ctx.Err() != nil {
								return ctx.Err()
							}
							return err
						}
						continue
					}
					logger.Warn("watcher error", "error", werr)
				}
			}
		}

		teardown := func(ctx context.Context) error {
			logger.Debug("lifespan over")
			if err := slot.get().Close(); err != nil {
				return fmt.Errorf("failed to close watcher: %w", err)
			}
			return nil
		}

		return task, teardown, nil
	})
}

// openWatcher creates a watcher on path, retrying transient failures
// with exponential backoff.
func openWatcher(ctx context.Context, path string) (*fsnotify.Watcher, error) {
	var watcher *fsnotify.Watcher

	attempt := func() error {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := w.Add(path); err != nil {
			_ = w.Close()
			return err
		}
		watcher = w
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}
	return watcher, nil
}
