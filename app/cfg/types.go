package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	EncryptionKey     string

	// Dispatcher policy
	MaxPublishAttempts   int
	PublishStaleMinutes  int
	FetchTimeoutSeconds  int
	DispatchBatchLimit   int
	TelegramAPIBaseURL   string
	TwitterAPIBaseURL    string
	InstagramAPIBaseURL  string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
