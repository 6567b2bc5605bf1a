package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/publisher"
	"github.com/postcomb/postcomb/app/schedule"
)

// DispatchPostsTask publishes the due posts of one (platform, account) pair.
// Grouping per account serializes publishes against the same credential, so
// daily quota checks and platform rate limits see one writer at a time.
type DispatchPostsTask struct {
	Task
	Platform    string
	AccountID   string
	Posts       []database.ScheduledPost
	postRepo    database.PostRepository
	accountRepo database.AccountRepository
	registry    *publisher.Registry
	maxAttempts int
	now         func() time.Time
}

func NewDispatchPostsTask(platform, accountID string, posts []database.ScheduledPost,
	postRepo database.PostRepository, accountRepo database.AccountRepository,
	registry *publisher.Registry, maxAttempts int) *DispatchPostsTask {
	return &DispatchPostsTask{
		Task:        NewTask(TaskTypeDispatchPosts, fmt.Sprintf("%s/%s", platform, accountID)),
		Platform:    platform,
		AccountID:   accountID,
		Posts:       posts,
		postRepo:    postRepo,
		accountRepo: accountRepo,
		registry:    registry,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *DispatchPostsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	pub, err := t.registry.For(t.Platform)
	if err != nil {
		return fmt.Errorf("failed to resolve publisher: %w", err)
	}

	account, err := t.accountRepo.GetAccount(t.Platform, t.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	published := 0
	deferred := 0
	failed := 0

	for i := range t.Posts {
		post := &t.Posts[i]

		// Losing the claim means the post was cancelled or grabbed by a
		// concurrent dispatcher between the due scan and now
		claimed, err := t.postRepo.ClaimForPublishing(post.ID)
		if err != nil {
			return fmt.Errorf("failed to claim post: %w", err)
		}
		if !claimed {
			continue
		}
		attempts := post.PublishAttempts + 1

		if account == nil {
			t.markFailed(post.ID, "account no longer exists")
			failed++
			continue
		}

		ok, err := t.accountRepo.TryConsumeDailyQuota(t.Platform, t.AccountID)
		if err != nil {
			return fmt.Errorf("failed to consume daily quota: %w", err)
		}
		if !ok {
			// Quota is per calendar day; push the rest of the batch past
			// the midnight rollover. Deferrals never touch the platform,
			// so they must not spend the posts' retry budget either.
			tomorrow := schedule.DayStart(t.now()).AddDate(0, 0, 1)
			for j := i; j < len(t.Posts); j++ {
				if j > i {
					if claimed, err := t.postRepo.ClaimForPublishing(t.Posts[j].ID); err != nil || !claimed {
						continue
					}
				}
				if err := t.postRepo.DeferForQuota(t.Posts[j].ID, tomorrow); err != nil {
					slog.Warn("Failed to defer post", "post", t.Posts[j].ID, "error", err)
				}
				deferred++
			}
			break
		}

		platformPostID, err := pub.Publish(ctx, t.buildContent(post), account)
		if err != nil {
			if publisher.IsRetryable(err) && attempts < t.maxAttempts {
				retryAt := t.now().Add(retryDelay(attempts))
				if releaseErr := t.postRepo.ReleaseToScheduled(post.ID, retryAt); releaseErr != nil {
					slog.Warn("Failed to release post for retry", "post", post.ID, "error", releaseErr)
				}
				slog.Warn("Post publish retry scheduled", "post", post.ID, "attempts", attempts, "retry_at", retryAt, "error", err)
				deferred++
			} else {
				t.markFailed(post.ID, err.Error())
				failed++
			}
			continue
		}

		if err := t.postRepo.MarkPublished(post.ID, platformPostID); err != nil {
			return fmt.Errorf("failed to mark post published: %w", err)
		}
		published++
	}

	slog.Info("Task completed",
		"type", "DispatchPosts",
		"platform", t.Platform,
		"account", t.AccountID,
		"duration", t.GetDuration(),
		"published", published,
		"deferred", deferred,
		"failed", failed)

	return nil
}

func (t *DispatchPostsTask) buildContent(post *database.ScheduledPost) publisher.Content {
	return publisher.Content{
		Text:     post.Content,
		ImageURL: post.PublishOptions["image_url"],
		Options:  post.PublishOptions,
	}
}

func (t *DispatchPostsTask) markFailed(postID, message string) {
	if err := t.postRepo.MarkFailed(postID, message); err != nil {
		slog.Warn("Failed to mark post failed", "post", postID, "error", err)
	}
}

// retryDelay grows exponentially with the attempt count, capped at 30
// minutes.
func retryDelay(attempts int) time.Duration {
	delay := time.Duration(1<<uint(attempts-1)) * time.Minute
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	return delay
}
