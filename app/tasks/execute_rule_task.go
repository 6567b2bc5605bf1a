package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/schedule"
)

const ruleSelectionLimit = 10

// ExecuteRuleTask runs one due auto-posting rule: it picks the next matching
// monitored item and schedules a post for each of the rule's targets. A rule
// posts at most one item per tick; caps bound how many posts it may create
// per calendar day and ISO week.
type ExecuteRuleTask struct {
	Task
	Rule       *database.AutoPostingRule
	ruleRepo   database.RuleRepository
	itemRepo   database.ItemRepository
	postRepo   database.PostRepository
	sourceRepo database.SourceRepository
	now        func() time.Time
}

func NewExecuteRuleTask(rule *database.AutoPostingRule, ruleRepo database.RuleRepository,
	itemRepo database.ItemRepository, postRepo database.PostRepository,
	sourceRepo database.SourceRepository) *ExecuteRuleTask {
	return &ExecuteRuleTask{
		Task:       NewTask(TaskTypeExecuteRule, rule.Name),
		Rule:       rule,
		ruleRepo:   ruleRepo,
		itemRepo:   itemRepo,
		postRepo:   postRepo,
		sourceRepo: sourceRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (t *ExecuteRuleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := t.now()
	next := t.nextExecution(now)

	outcome, posted, err := t.run(now)
	if err != nil {
		if recordErr := t.ruleRepo.RecordExecution(t.Rule.ID, database.ExecutionFailed, next); recordErr != nil {
			slog.Warn("Failed to record rule execution", "rule", t.Rule.Name, "error", recordErr)
		}
		return fmt.Errorf("rule execution failed: %w", err)
	}

	if err := t.ruleRepo.RecordExecution(t.Rule.ID, outcome, next); err != nil {
		return fmt.Errorf("failed to record rule execution: %w", err)
	}

	slog.Info("Task completed",
		"type", "ExecuteRule",
		"rule", t.Rule.Name,
		"duration", t.GetDuration(),
		"outcome", string(outcome),
		"posts_created", posted,
		"next_execution", next)

	return nil
}

// nextExecution computes the tick after the one being served. Missed ticks
// collapse: a rule that was overdue for hours fires once and resyncs.
func (t *ExecuteRuleTask) nextExecution(now time.Time) time.Time {
	spec := schedule.Spec{
		Type:            t.Rule.ScheduleType,
		IntervalMinutes: t.Rule.IntervalMinutes,
		TimesOfDay:      t.Rule.TimesOfDay,
		Weekdays:        t.Rule.Weekdays,
	}

	var prev time.Time
	if t.Rule.NextExecutionAt != nil {
		prev = *t.Rule.NextExecutionAt
	}

	return spec.Next(prev, now)
}

func (t *ExecuteRuleTask) run(now time.Time) (database.ExecutionOutcome, int, error) {
	filter := database.RuleItemFilter{
		Keywords:     t.Rule.FilterKeywords,
		Categories:   t.Rule.FilterCategories,
		MinRelevance: t.Rule.MinRelevance,
	}

	items, err := t.itemRepo.SelectItemsForRule(t.Rule.UserID, filter, ruleSelectionLimit)
	if err != nil {
		return "", 0, fmt.Errorf("failed to select items: %w", err)
	}
	if len(items) == 0 {
		return database.ExecutionSucceeded, 0, nil
	}

	caps := database.PostCaps{
		MaxPerDay:  t.Rule.MaxPostsPerDay,
		MaxPerWeek: t.Rule.MaxPostsPerWeek,
		DayStart:   schedule.DayStart(now),
		WeekStart:  schedule.WeekStart(now),
	}

	for i := range items {
		posted, capped, err := t.postItem(&items[i], caps, now)
		if err != nil {
			return "", 0, err
		}
		if capped {
			// Cap windows roll over on their own; the next tick retries
			return database.ExecutionDeferred, 0, nil
		}
		if posted > 0 {
			return database.ExecutionSucceeded, posted, nil
		}
		// Item was claimed by a concurrent rule, try the next one
	}

	return database.ExecutionSucceeded, 0, nil
}

// postItem creates one scheduled post per rule target for the item. Returns
// capped=true when the rule's post caps block creation.
func (t *ExecuteRuleTask) postItem(item *database.MonitoredItem, caps database.PostCaps, now time.Time) (posted int, capped bool, err error) {
	content := buildPostContent(item)

	scheduledAt, err := t.scheduledAtFor(item, now)
	if err != nil {
		return 0, false, err
	}

	for i, target := range t.Rule.Targets {
		post := &database.ScheduledPost{
			UserID:      t.Rule.UserID,
			ItemID:      &item.ID,
			RuleID:      &t.Rule.ID,
			Platform:    target.Platform,
			AccountID:   target.AccountID,
			Content:     content,
			ScheduledAt: scheduledAt,
			Status:      database.PostStatusScheduled,
		}
		if item.ImageURL != "" {
			post.PublishOptions = map[string]string{"image_url": item.ImageURL}
		}

		postID, created, err := t.postRepo.CreatePostCapped(post, caps)
		if err != nil {
			return posted, false, fmt.Errorf("failed to create post: %w", err)
		}
		if !created {
			return posted, true, nil
		}

		// The first post claims the item; losing the claim means another
		// rule already posted it, so back the post out
		if i == 0 {
			attached, err := t.itemRepo.AttachScheduledPost(item.ID, postID)
			if err != nil {
				return posted, false, fmt.Errorf("failed to attach post to item: %w", err)
			}
			if !attached {
				if _, err := t.postRepo.CancelPost(postID, t.Rule.UserID); err != nil {
					slog.Warn("Failed to cancel orphaned post", "post", postID, "error", err)
				}
				return 0, false, nil
			}
		}

		posted++
	}

	if posted > 0 {
		if err := t.sourceRepo.IncrementPostsCreated(item.SourceID); err != nil {
			slog.Warn("Failed to increment source post counter", "source", item.SourceID, "error", err)
		}
	}

	return posted, false, nil
}

// scheduledAtFor applies the item's source post delay, leaving a review
// window in which the post can still be cancelled before dispatch picks it
// up. A deleted source means no delay.
func (t *ExecuteRuleTask) scheduledAtFor(item *database.MonitoredItem, now time.Time) (time.Time, error) {
	src, err := t.sourceRepo.GetSource(item.SourceID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load item source: %w", err)
	}
	if src == nil || src.PostDelayMinutes <= 0 {
		return now, nil
	}
	return now.Add(time.Duration(src.PostDelayMinutes) * time.Minute), nil
}

func buildPostContent(item *database.MonitoredItem) string {
	parts := []string{item.Title}
	if item.Summary != "" {
		parts = append(parts, item.Summary)
	}
	if item.URL != "" {
		parts = append(parts, item.URL)
	}
	return strings.Join(parts, "\n\n")
}
