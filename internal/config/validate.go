package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"examnotify/internal/task/scheduler"
	"examnotify/internal/transport"
	logx "examnotify/pkg/logx"
)

// Validate reports every problem found in cfg, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required (or set %s)", EnvBotToken)
	}
	if _, err := transport.ParseChatTarget(cfg.Telegram.Channel, cfg.Telegram.ThreadID); err != nil {
		add("telegram.channel: %v", err)
	}
	if cfg.Telegram.StartupAttempts < 0 {
		add("telegram.startup_attempts must be >= 0")
	}
	if u := strings.TrimSpace(cfg.Telegram.APIURL); u != "" {
		if err := checkHTTPURL(u); err != nil {
			add("telegram.api_url: %v", err)
		}
	}

	if err := checkHTTPURL(cfg.Feeds.Notifications); err != nil {
		add("feeds.notifications: %v", err)
	}
	if err := checkHTTPURL(cfg.Feeds.Results); err != nil {
		add("feeds.results: %v", err)
	}
	if cfg.Fetch.MaxBodyBytes < 0 {
		add("fetch.max_body_bytes must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Delivery.ColdStart)) {
	case "", ColdStartLatest, ColdStartAll, ColdStartNone:
	default:
		add("delivery.cold_start: unknown policy %q (use latest, all or none)", cfg.Delivery.ColdStart)
	}

	if _, err := scheduler.ParseSchedule(cfg.Scheduler.Schedule); err != nil {
		add("scheduler.schedule: %v", err)
	}
	if _, err := scheduler.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		add("scheduler.timezone: %v", err)
	}

	if cfg.Status.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Status.Addr)); err != nil {
			add("status.addr: %v", err)
		}
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(cfg.Storage.Path) == "" {
				add("storage.path is required when storage.driver=%s", cfg.Storage.Driver)
			}
		default:
			add("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.Telegram.Enabled {
		if _, err := transport.ParseChatTarget(cfg.Logging.Telegram.Chat, 0); err != nil {
			add("logging.telegram.chat: %v", err)
		}
	}

	if _, err := cfg.Timings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkHTTPURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// Timings holds the parsed duration fields. Omitted fields are zero; callers
// pick their own fallback, except DeliveryDelay where "0s" turns spacing off.
type Timings struct {
	StartupTimeout time.Duration
	FetchTimeout   time.Duration
	DeliveryDelay  time.Duration
	RunTimeout     time.Duration
	BusyTimeout    time.Duration
}

// Timings parses every duration field of c and names each bad key.
func (c *Config) Timings() (Timings, error) {
	var t Timings
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"telegram.startup_timeout", c.Telegram.StartupTimeout, &t.StartupTimeout},
		{"fetch.timeout", c.Fetch.Timeout, &t.FetchTimeout},
		{"delivery.delay", c.Delivery.Delay, &t.DeliveryDelay},
		{"scheduler.run_timeout", c.Scheduler.RunTimeout, &t.RunTimeout},
	}
	if c.Storage != nil {
		fields = append(fields, struct {
			key string
			raw string
			dst *time.Duration
		}{"storage.busy_timeout", c.Storage.BusyTimeout, &t.BusyTimeout})
	}

	var errs []error
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", f.key, f.raw))
		case d < 0:
			errs = append(errs, fmt.Errorf("%s: must not be negative", f.key))
		default:
			*f.dst = d
		}
	}
	return t, errors.Join(errs...)
}
