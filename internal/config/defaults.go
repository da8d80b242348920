package config

const (
	DefaultChannel          = "@KLUNINOTIFY"
	DefaultNotificationsURL = "https://exams.keralauniversity.ac.in/Login/check1/==QOBRkVRpEbRdVOrJVYatmV"
	DefaultResultsURL       = "https://exams.keralauniversity.ac.in/Login/check8/==QOBRkVRpEbRdVOrJVYatmV"
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultSchedule         = "*/5 * * * *"
	DefaultStatusAddr       = ":3000"

	ColdStartLatest = "latest"
	ColdStartAll    = "all"
	ColdStartNone   = "none"
)

// Default returns a config that runs as-is once a bot token is provided.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Channel:         DefaultChannel,
			StartupAttempts: 3,
			StartupTimeout:  "10s",
		},
		Feeds: FeedsConfig{
			Notifications: DefaultNotificationsURL,
			Results:       DefaultResultsURL,
		},
		Fetch: FetchConfig{
			Timeout:      "30s",
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: 4 << 20,
		},
		Delivery: DeliveryConfig{
			Delay:     "3s",
			ColdStart: ColdStartLatest,
		},
		Scheduler: SchedulerConfig{
			Schedule:   DefaultSchedule,
			RunOnStart: true,
		},
		Status: StatusConfig{
			Enabled: true,
			Addr:    DefaultStatusAddr,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Telegram: LoggingTelegram{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
	}
}
