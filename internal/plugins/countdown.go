package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/plugspan/internal/lifespan"
)

// Countdown returns a plugin that counts down from start, publishing
// each value on CountdownTopic and sleeping between counts. Its task
// finishes on its own once the countdown reaches zero.
func Countdown(pctx *Context, start int, sleep time.Duration) lifespan.Plugin {
	return lifespan.Func("countdown", func(ctx context.Context) (lifespan.TaskFunc, lifespan.TeardownFunc, error) {
		if start < 1 {
			return nil, nil, fmt.Errorf("countdown start must be >= 1 (got %d)", start)
		}
		if sleep <= 0 {
			return nil, nil, fmt.Errorf("countdown sleep must be positive (got %v)", sleep)
		}

		logger := pctx.Logger.WithPlugin("countdown")

		task := func(ctx context.Context) error {
			for cur := start; cur > 0; cur-- {
				logger.Info("counting down", "current", cur)
				pctx.Hub.Publish(CountdownTopic, cur)

				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			logger.Info("finished counting down")
			return nil
		}

		teardown := func(ctx context.Context) error {
			logger.Debug("lifespan over")
			return nil
		}

		return task, teardown, nil
	})
}
