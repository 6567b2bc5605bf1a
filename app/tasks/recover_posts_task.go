package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/postcomb/postcomb/app/database"
)

// RecoverPostsTask sweeps posts stuck in publishing past the staleness
// window, typically after a crash mid-dispatch. Posts with attempts left are
// requeued; exhausted ones are marked failed.
type RecoverPostsTask struct {
	Task
	postRepo    database.PostRepository
	staleAfter  time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewRecoverPostsTask(postRepo database.PostRepository, staleAfter time.Duration, maxAttempts int) *RecoverPostsTask {
	return &RecoverPostsTask{
		Task:        NewTask(TaskTypeRecoverPosts, "stale_publishing"),
		postRepo:    postRepo,
		staleAfter:  staleAfter,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *RecoverPostsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	staleBefore := t.now().Add(-t.staleAfter)

	requeued, failed, err := t.postRepo.RecoverStalePublishing(staleBefore, t.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to recover stale posts: %w", err)
	}

	if requeued > 0 || failed > 0 {
		slog.Info("Task completed",
			"type", "RecoverPosts",
			"duration", t.GetDuration(),
			"requeued", requeued,
			"failed", failed)
	}

	return nil
}
