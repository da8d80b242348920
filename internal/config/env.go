package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvBotToken         = "TELEGRAM_BOT_TOKEN"
	EnvChannel          = "TELEGRAM_CHANNEL_ID"
	EnvNotificationsURL = "NOTIFICATIONS_URL"
	EnvResultsURL       = "RESULTS_URL"
	EnvCheckInterval    = "CHECK_INTERVAL"
	EnvPort             = "PORT"
	EnvLogLevel         = "LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overlays environment values onto cfg. Empty values are ignored.
// It returns the names of the variables that were applied.
func ApplyEnv(cfg *Config, lookup LookupFunc) []string {
	if cfg == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var applied []string
	set := func(key string, dst *string) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return
		}
		*dst = v
		applied = append(applied, key)
	}

	set(EnvBotToken, &cfg.Telegram.Token)
	set(EnvChannel, &cfg.Telegram.Channel)
	set(EnvNotificationsURL, &cfg.Feeds.Notifications)
	set(EnvResultsURL, &cfg.Feeds.Results)
	set(EnvCheckInterval, &cfg.Scheduler.Schedule)
	set(EnvLogLevel, &cfg.Logging.Level)

	var port string
	set(EnvPort, &port)
	if port != "" {
		cfg.Status.Addr = portAddr(cfg.Status.Addr, port)
	}
	return applied
}

// portAddr keeps the configured host and replaces the port.
func portAddr(addr, port string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}
