package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"postcomb_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"postcomb_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"postcomb" description:"Database name"`

	// Application configuration
	SeedsDir          string `long:"seeds-dir" env:"SEEDS_DIR" default:"./seeds" description:"Directory containing source seed files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	EncryptionKey     string `long:"encryption-key" env:"ENCRYPTION_KEY" description:"Hex-encoded 32-byte key for credential encryption (required)" required:"true"`

	// Dispatcher policy
	MaxPublishAttempts  int    `long:"max-publish-attempts" env:"MAX_PUBLISH_ATTEMPTS" default:"3" description:"Maximum publish attempts per scheduled post"`
	PublishStaleMinutes int    `long:"publish-stale-minutes" env:"PUBLISH_STALE_MINUTES" default:"15" description:"Minutes after which a post stuck in publishing is recovered"`
	FetchTimeoutSeconds int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout in seconds for source fetches and publish calls"`
	DispatchBatchLimit  int    `long:"dispatch-batch-limit" env:"DISPATCH_BATCH_LIMIT" default:"100" description:"Maximum due posts picked up per scheduler tick"`
	TelegramAPIBaseURL  string `long:"telegram-api-url" env:"TELEGRAM_API_URL" default:"https://api.telegram.org" description:"Telegram Bot API base URL"`
	TwitterAPIBaseURL   string `long:"twitter-api-url" env:"TWITTER_API_URL" default:"https://api.twitter.com" description:"Twitter API base URL"`
	InstagramAPIBaseURL string `long:"instagram-api-url" env:"INSTAGRAM_API_URL" default:"https://i.instagram.com" description:"Instagram API base URL"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"PostComb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// A missing .env file is not an error, environment wins either way
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:              raw.DBHost,
		DBPort:              raw.DBPort,
		DBUser:              raw.DBUser,
		DBPassword:          raw.DBPassword,
		DBName:              raw.DBName,
		SeedsDir:            raw.SeedsDir,
		Port:                raw.Port,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		APIAccessKey:        raw.APIAccessKey,
		EncryptionKey:       raw.EncryptionKey,
		MaxPublishAttempts:  raw.MaxPublishAttempts,
		PublishStaleMinutes: raw.PublishStaleMinutes,
		FetchTimeoutSeconds: raw.FetchTimeoutSeconds,
		DispatchBatchLimit:  raw.DispatchBatchLimit,
		TelegramAPIBaseURL:  raw.TelegramAPIBaseURL,
		TwitterAPIBaseURL:   raw.TwitterAPIBaseURL,
		InstagramAPIBaseURL: raw.InstagramAPIBaseURL,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
