package config

import "examnotify/internal/feed"

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("3s", "4m"). Omitted fields keep the
// values from Default().
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Feeds     FeedsConfig     `json:"feeds"`
	Fetch     FetchConfig     `json:"fetch"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Status    StatusConfig    `json:"status"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"` // never logged
	// Channel is "@username" or a numeric chat id.
	Channel  string `json:"channel"`
	ThreadID int    `json:"thread_id,omitempty"`
	// APIURL overrides the Bot API base url (self-hosted bot API, tests).
	APIURL          string `json:"api_url,omitempty"`
	StartupAttempts int    `json:"startup_attempts,omitempty"`
	StartupTimeout  string `json:"startup_timeout,omitempty"`
}

type FeedsConfig struct {
	Notifications string `json:"notifications"`
	Results       string `json:"results"`
}

// URL returns the configured listing url for kind.
func (f FeedsConfig) URL(kind feed.Kind) string {
	switch kind {
	case feed.KindNotifications:
		return f.Notifications
	case feed.KindResults:
		return f.Results
	default:
		return ""
	}
}

type FetchConfig struct {
	Timeout      string `json:"timeout,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty"`
}

// DeliveryConfig controls the per-cycle send loop.
//
// ColdStart decides what the first cycle of a feed announces:
//   - "latest": only the most recent item (default)
//   - "all": every item on the page
//   - "none": nothing; the snapshot is armed silently
type DeliveryConfig struct {
	Delay     string `json:"delay,omitempty"`
	ColdStart string `json:"cold_start,omitempty"`
}

// SchedulerConfig controls the polling trigger.
//
// Schedule accepts cron ("*/5 * * * *", "@every 5m"), a Go duration ("5m"),
// HH:MM ("00:05") or the "cron:"/"interval:" prefixes.
type SchedulerConfig struct {
	Schedule   string `json:"schedule"`
	Timezone   string `json:"timezone,omitempty"`
	RunTimeout string `json:"run_timeout,omitempty"`
	RunOnStart bool   `json:"run_on_start"`
}

// StatusConfig controls the liveness/status HTTP server.
type StatusConfig struct {
	Enabled bool        `json:"enabled"`
	Addr    string      `json:"addr,omitempty"`
	Pprof   PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig mounts net/http/pprof on the status server.
// Set a token when the status server is reachable from outside.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)
}

// StorageConfig controls the optional delivery audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/examnotify.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warnings to an ops chat (not the public channel).
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Chat       string `json:"chat"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
