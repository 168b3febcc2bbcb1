// Package tasks defines the background tasks run by the scheduler.
package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature every scheduled task implements.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the map of task names to task functions. Task
// names must match the keys under scheduler.tasks in the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	return map[string]ScheduledTaskFunc{
		"media_sweep": NewMediaSweepTask(deps),
	}
}
