package database

import (
	"time"
)

type UserRepository interface {
	EnsureUser(email string) (string, error)
}

type SourceRepository interface {
	GetDueSources(limit int) ([]ContentSource, error)
	GetSource(id string) (*ContentSource, error)
	GetSourceForUser(id, userID string) (*ContentSource, error)
	GetSourceByURL(userID, url string) (*ContentSource, error)
	ListSources(userID string) ([]ContentSource, error)
	CreateSource(s *ContentSource) (string, error)
	UpdateSource(s *ContentSource) error
	SetSourceActive(id, userID string, active bool) (bool, error)

	RecordCheckResult(id, status, errorMessage, snapshotHash string, itemsFound, itemsNew, intervalMinutes int) error
	IncrementPostsCreated(id string) error
	InsertCheck(c SourceCheck) error
	ListChecks(sourceID string, limit int) ([]SourceCheck, error)
}

// RuleItemFilter is the content selection config of an auto-posting rule,
// applied when picking monitored items for an execution.
type RuleItemFilter struct {
	Keywords     []string
	Categories   []string
	MinRelevance float64
}

type ItemRepository interface {
	ItemExists(sourceID, externalID string) (bool, error)
	InsertItem(item *MonitoredItem) (string, bool, error)
	GetItemForUser(id, userID string) (*MonitoredItem, error)
	ListItems(userID, status string, limit int) ([]MonitoredItem, error)
	RecentItemsForOwner(userID, excludeSourceID string, limit int) ([]MonitoredItem, error)
	TransitionItemStatus(id, userID, from, to string) (bool, error)
	SelectItemsForRule(userID string, filter RuleItemFilter, limit int) ([]MonitoredItem, error)
	AttachScheduledPost(itemID, postID string) (bool, error)
}

type RuleRepository interface {
	GetDueRules(limit int) ([]AutoPostingRule, error)
	GetRuleForUser(id, userID string) (*AutoPostingRule, error)
	ListRules(userID string) ([]AutoPostingRule, error)
	CreateRule(r *AutoPostingRule) (string, error)
	UpdateRule(r *AutoPostingRule) error
	SetRulePaused(id, userID string, paused bool) (bool, error)
	RecordExecution(id string, outcome ExecutionOutcome, next time.Time) error
}

type ExecutionOutcome string

const (
	ExecutionSucceeded ExecutionOutcome = "succeeded"
	ExecutionDeferred  ExecutionOutcome = "deferred"
	ExecutionFailed    ExecutionOutcome = "failed"
)

// PostCaps bounds how many posts a rule may create inside the current
// calendar windows. Zero means unlimited.
type PostCaps struct {
	MaxPerDay  int
	MaxPerWeek int
	DayStart   time.Time
	WeekStart  time.Time
}

type PostRepository interface {
	GetDuePosts(limit int) ([]ScheduledPost, error)
	GetPostForUser(id, userID string) (*ScheduledPost, error)
	ListPosts(userID, status string, limit int) ([]ScheduledPost, error)
	CreatePost(p *ScheduledPost) (string, error)
	CreatePostCapped(p *ScheduledPost, caps PostCaps) (string, bool, error)

	ClaimForPublishing(id string) (bool, error)
	ReleaseToScheduled(id string, until time.Time) error
	DeferForQuota(id string, until time.Time) error
	MarkPublished(id, platformPostID string) error
	MarkFailed(id, errorMessage string) error
	CancelPost(id, userID string) (bool, error)
	RecoverStalePublishing(staleBefore time.Time, maxAttempts int) (requeued int, failed int, err error)
}

type AccountRepository interface {
	GetAccount(platform, id string) (*Account, error)
	ListAccounts(userID string) ([]Account, error)
	CreateTelegramChannel(ch *TelegramChannel) (string, error)
	CreateInstagramAccount(a *InstagramAccount) (string, error)
	CreateTwitterAccount(a *TwitterAccount) (string, error)

	// TryConsumeDailyQuota atomically increments the account's posts_today,
	// handling the midnight rollover, and reports false when the account is
	// already at its daily cap.
	TryConsumeDailyQuota(platform, id string) (bool, error)
	RemainingDailyQuota(platform, id string) (int, error)
}

type UsageRepository interface {
	InsertEvent(e *UsageEvent) (string, error)
	RecomputeDailyStats(from, to time.Time) error
	GetDailyStats(userID string, from, to time.Time) ([]DailyUsage, error)
}
