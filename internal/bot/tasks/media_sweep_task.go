package tasks

import (
	"context"
	"fmt"
)

// NewMediaSweepTask returns a task that removes stale files from the media
// scratch directory. Downloads are deleted after each inference call; the
// sweep only catches leftovers from crashes between download and cleanup.
func NewMediaSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "media_sweep")

	return func(ctx context.Context) error {
		maxAge := deps.Config.Media.SweepMaxAge

		log.DebugContext(ctx, "Sweeping media directory", "dir", deps.Downloader.Dir(), "max_age", maxAge)
		if err := deps.Downloader.Sweep(maxAge); err != nil {
			return fmt.Errorf("media sweep failed: %w", err)
		}
		return nil
	}
}
