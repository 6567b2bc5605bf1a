package api

import (
	"net/http"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/ledger"
	"github.com/postcomb/postcomb/app/secrets"
	"github.com/postcomb/postcomb/app/source"
	"github.com/postcomb/postcomb/app/tasks"
)

type Handler struct {
	sourceRepo   database.SourceRepository
	itemRepo     database.ItemRepository
	ruleRepo     database.RuleRepository
	postRepo     database.PostRepository
	accountRepo  database.AccountRepository
	recorder     *ledger.Recorder
	cipher       *secrets.Cipher
	scheduler    tasks.TaskSchedulerInterface
	httpClient   *http.Client
	filterer     *source.Filterer
	scorer       *source.Scorer
	similarity   source.SimilarityStrategy
	userAgent    string
	fetchTimeout time.Duration
	startedAt    time.Time
}

type sourceRequest struct {
	Name                 string   `json:"name" binding:"required"`
	SourceType           string   `json:"source_type"`
	URL                  string   `json:"url" binding:"required"`
	ExtractionMethod     string   `json:"extraction_method" binding:"required"`
	ItemSelector         string   `json:"item_selector"`
	TitleSelector        string   `json:"title_selector"`
	LinkSelector         string   `json:"link_selector"`
	SummarySelector      string   `json:"summary_selector"`
	IncludeKeywords      []string `json:"include_keywords"`
	ExcludeKeywords      []string `json:"exclude_keywords"`
	Categories           []string `json:"categories"`
	AutoPost             bool     `json:"auto_post"`
	PostDelayMinutes     int      `json:"post_delay_minutes"`
	CheckIntervalMinutes int      `json:"check_interval_minutes"`
}

type ruleRequest struct {
	Name             string                `json:"name" binding:"required"`
	ScheduleType     string                `json:"schedule_type" binding:"required"`
	IntervalMinutes  int                   `json:"interval_minutes"`
	TimesOfDay       []string              `json:"times_of_day"`
	Weekdays         []string              `json:"weekdays"`
	FilterKeywords   []string              `json:"filter_keywords"`
	FilterCategories []string              `json:"filter_categories"`
	MinRelevance     float64               `json:"min_relevance"`
	Targets          []database.RuleTarget `json:"targets" binding:"required"`
	MaxPostsPerDay   int                   `json:"max_posts_per_day"`
	MaxPostsPerWeek  int                   `json:"max_posts_per_week"`
}

type postRequest struct {
	Platform    string            `json:"platform" binding:"required"`
	AccountID   string            `json:"account_id" binding:"required"`
	Content     string            `json:"content" binding:"required"`
	Options     map[string]string `json:"options"`
	ScheduledAt time.Time         `json:"scheduled_at" binding:"required"`
}

type telegramChannelRequest struct {
	Title           string `json:"title" binding:"required"`
	ChatID          string `json:"chat_id" binding:"required"`
	BotToken        string `json:"bot_token" binding:"required"`
	DailyPostsLimit int    `json:"daily_posts_limit"`
}

type instagramAccountRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	DailyPostsLimit int    `json:"daily_posts_limit"`
}

type twitterAccountRequest struct {
	Handle          string `json:"handle" binding:"required"`
	ConsumerKey     string `json:"consumer_key" binding:"required"`
	ConsumerSecret  string `json:"consumer_secret" binding:"required"`
	AccessToken     string `json:"access_token" binding:"required"`
	AccessSecret    string `json:"access_secret" binding:"required"`
	DailyPostsLimit int    `json:"daily_posts_limit"`
}

type usageEventRequest struct {
	Agent            string  `json:"agent" binding:"required"`
	Provider         string  `json:"provider" binding:"required"`
	Model            string  `json:"model" binding:"required"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}
