package plugins

import (
	"context"

	"github.com/Iron-Ham/plugspan/internal/lifespan"
)

// Echo returns a plugin whose task logs every update published on
// CountdownTopic. When immediately is true it echoes the topic's
// current value right away instead of waiting for the next publish.
func Echo(pctx *Context, immediately bool) lifespan.Plugin {
	return lifespan.Func("echo", func(ctx context.Context) (lifespan.TaskFunc, lifespan.TeardownFunc, error) {
		logger := pctx.Logger.WithPlugin("echo")

		task := func(ctx context.Context) error {
			for update := range pctx.Hub.Updates(ctx, CountdownTopic, immediately) {
				if update.Value == nil {
					continue
				}
				logger.Info("countdown currently at", "value", update.Value)
			}
			// The updates channel only closes once ctx is done.
			return ctx.Err()
		}

		teardown := func(ctx context.Context) error {
			logger.Debug("lifespan over")
			return nil
		}

		return task, teardown, nil
	})
}
