package database

import (
	"time"
)

// Source check / item / post / rule statuses are stored as plain strings.
// The accepted values are enforced by CHECK constraints in the schema.
const (
	CheckStatusSuccess = "success"
	CheckStatusError   = "error"
	CheckStatusPartial = "partial"

	ItemStatusNew       = "new"
	ItemStatusApproved  = "approved"
	ItemStatusPosted    = "posted"
	ItemStatusIgnored   = "ignored"
	ItemStatusDuplicate = "duplicate"
	ItemStatusError     = "error"

	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
	PostStatusCancelled  = "cancelled"

	PlatformTelegram  = "telegram"
	PlatformInstagram = "instagram"
	PlatformTwitter   = "twitter"
)

type ContentSource struct {
	ID                   string
	UserID               string
	Name                 string
	SourceType           string // website, rss, news_api, social
	URL                  string
	ExtractionMethod     string // rss, css, article
	ItemSelector         string
	TitleSelector        string
	LinkSelector         string
	SummarySelector      string
	IncludeKeywords      []string
	ExcludeKeywords      []string
	Categories           []string
	AutoPost             bool
	PostDelayMinutes     int
	CheckIntervalMinutes int
	LastCheckAt          *time.Time
	NextCheckAt          *time.Time
	LastCheckStatus      string
	LastErrorMessage     string
	TotalChecks          int
	TotalItemsFound      int
	TotalItemsNew        int
	TotalPostsCreated    int
	LastSnapshotHash     string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type MonitoredItem struct {
	ID              string
	SourceID        string
	UserID          string
	ExternalID      string
	Title           string
	Content         string
	Summary         string
	URL             string
	ImageURL        string
	Author          string
	PublishedAt     *time.Time
	RelevanceScore  float64
	Sentiment       string
	Category        string
	Keywords        []string
	Status          string
	DuplicateOfID   *string
	ScheduledPostID *string
	CreatedAt       time.Time
}

type SourceCheck struct {
	ID             string
	SourceID       string
	UserID         string
	Status         string // success, error, partial
	ItemsFound     int
	ItemsNew       int
	ItemsDuplicate int
	PostsCreated   int
	ErrorMessage   string
	ExecutionMS    int64
	CheckedAt      time.Time
}

// RuleTarget is one (platform, account) pair a rule publishes to.
type RuleTarget struct {
	Platform  string `json:"platform"`
	AccountID string `json:"account_id"`
}

type AutoPostingRule struct {
	ID                   string
	UserID               string
	Name                 string
	ScheduleType         string // interval, daily, weekly
	IntervalMinutes      int
	TimesOfDay           []string // "15:04" in UTC
	Weekdays             []string // "monday".."sunday"
	FilterKeywords       []string
	FilterCategories     []string
	MinRelevance         float64
	Targets              []RuleTarget
	MaxPostsPerDay       int
	MaxPostsPerWeek      int
	IsActive             bool
	IsPaused             bool
	TotalExecutions      int
	SuccessfulExecutions int
	FailedExecutions     int
	LastExecutionAt      *time.Time
	NextExecutionAt      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ScheduledPost struct {
	ID                  string
	UserID              string
	ItemID              *string
	RuleID              *string
	Platform            string
	AccountID           string
	Content             string
	PublishOptions      map[string]string
	ScheduledAt         time.Time
	PublishedAt         *time.Time
	Status              string
	PlatformPostID      string
	ErrorMessage        string
	PublishAttempts     int
	PublishingStartedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type TelegramChannel struct {
	ID              string
	UserID          string
	Title           string
	ChatID          string
	BotTokenEnc     []byte
	PostsToday      int
	DailyPostsLimit int
	PostsResetDate  time.Time
	IsActive        bool
	CreatedAt       time.Time
}

type InstagramAccount struct {
	ID              string
	UserID          string
	Username        string
	PasswordEnc     []byte
	PostsToday      int
	DailyPostsLimit int
	PostsResetDate  time.Time
	IsActive        bool
	CreatedAt       time.Time
}

type TwitterAccount struct {
	ID                string
	UserID            string
	Handle            string
	ConsumerKeyEnc    []byte
	ConsumerSecretEnc []byte
	AccessTokenEnc    []byte
	AccessSecretEnc   []byte
	PostsToday        int
	DailyPostsLimit   int
	PostsResetDate    time.Time
	IsActive          bool
	CreatedAt         time.Time
}

// Account is the tagged union over the three credential tables. Exactly one
// of Telegram/Instagram/Twitter is non-nil, matching Platform.
type Account struct {
	Platform        string
	ID              string
	UserID          string
	Label           string
	PostsToday      int
	DailyPostsLimit int
	IsActive        bool
	Telegram        *TelegramChannel
	Instagram       *InstagramAccount
	Twitter         *TwitterAccount
}

type UsageEvent struct {
	ID               string
	UserID           string
	Agent            string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	CreatedAt        time.Time
}

type DailyUsage struct {
	UserID           string
	UsageDate        time.Time
	Agent            string
	Provider         string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}
