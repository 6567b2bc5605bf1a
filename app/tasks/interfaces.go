package tasks

// TaskSchedulerInterface defines the interface for background task scheduling.
// Used by the main application to manage the worker pool that polls sources,
// executes auto-posting rules and dispatches due posts.
// Example usage:
//
//	scheduler := NewScheduler(sourceRepo, itemRepo, ruleRepo, postRepo, accountRepo, recorder, registry, filterer, scorer, similarity)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
