package tasks

import (
	"context"
)

// TaskSchedulerInterface is what the HTTP layer and main see of the
// background worker pool.
//
//	scheduler := NewScheduler(engine, registry, store)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.RefreshAll(ctx)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RefreshAll(ctx context.Context) (int, error)
}

// SourceLister enumerates every source the scheduler should keep warm.
type SourceLister interface {
	All(ctx context.Context) ([]string, error)
}
