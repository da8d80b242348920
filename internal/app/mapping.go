package app

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"examnotify/internal/config"
	"examnotify/internal/cycle"
	"examnotify/internal/feed"
	"examnotify/internal/notifier"
	"examnotify/internal/observability/status"
	"examnotify/internal/source"
	"examnotify/internal/storage"
	telegram "examnotify/internal/transport/telegram/adapter"
	logx "examnotify/pkg/logx"
)

const pollSchedule = "poll"

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	t, err := cfg.Timings()
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:    cfg.Telegram.Token,
		APIURL:   cfg.Telegram.APIURL,
		Attempts: cfg.Telegram.StartupAttempts,
		Timeout:  cmp.Or(t.StartupTimeout, 10*time.Second),
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapFetchConfig(cfg *config.Config) (source.FetcherConfig, error) {
	t, err := cfg.Timings()
	if err != nil {
		return source.FetcherConfig{}, err
	}
	return source.FetcherConfig{
		Timeout:      cmp.Or(t.FetchTimeout, source.DefaultTimeout),
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, nil
}

func feedURLs(cfg *config.Config) map[feed.Kind]string {
	urls := make(map[feed.Kind]string, len(feed.Kinds()))
	for _, k := range feed.Kinds() {
		urls[k] = strings.TrimSpace(cfg.Feeds.URL(k))
	}
	return urls
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	// "0s" turns spacing off, so zero must not fall back to a default
	t, err := cfg.Timings()
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{Delay: t.DeliveryDelay}, nil
}

func mapCycleConfig(cfg *config.Config) (cycle.Config, error) {
	policy, err := cycle.ParseColdStart(cfg.Delivery.ColdStart)
	if err != nil {
		return cycle.Config{}, fmt.Errorf("delivery.cold_start: %w", err)
	}
	return cycle.Config{ColdStart: policy}, nil
}

// mapSchedule returns the poll trigger and its per-run timeout (0 disables it).
func mapSchedule(cfg *config.Config) (string, time.Duration, error) {
	schedule := strings.TrimSpace(cfg.Scheduler.Schedule)
	if schedule == "" {
		schedule = config.DefaultSchedule
	}
	t, err := cfg.Timings()
	if err != nil {
		return "", 0, err
	}
	return schedule, t.RunTimeout, nil
}

func mapStatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Addr: cfg.Status.Addr,
		Pprof: status.PprofConfig{
			Enabled: cfg.Status.Pprof.Enabled,
			Token:   cfg.Status.Pprof.Token,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		t, err := cfg.Timings()
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: cmp.Or(t.BusyTimeout, time.Second)}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}
