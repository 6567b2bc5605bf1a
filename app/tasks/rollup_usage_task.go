package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/postcomb/postcomb/app/ledger"
)

// RollupUsageTask recomputes the daily token usage aggregates. The window
// reaches back two days so late-arriving events around midnight are folded
// in; the recomputation is idempotent.
type RollupUsageTask struct {
	Task
	recorder *ledger.Recorder
	now      func() time.Time
}

func NewRollupUsageTask(recorder *ledger.Recorder) *RollupUsageTask {
	return &RollupUsageTask{
		Task:     NewTask(TaskTypeRollupUsage, "daily_stats"),
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (t *RollupUsageTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := t.now()
	from := now.AddDate(0, 0, -2).Truncate(24 * time.Hour)

	if err := t.recorder.Rollup(from, now); err != nil {
		return fmt.Errorf("failed to roll up usage stats: %w", err)
	}

	slog.Debug("Task completed", "type", "RollupUsage", "duration", t.GetDuration(), "window_start", from)

	return nil
}
