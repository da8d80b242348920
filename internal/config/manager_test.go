package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseYAMLOverDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  channel: "@examchan"
delivery:
  delay: "1s"
scheduler:
  schedule: "10m"
logging:
  level: debug
`)
	m := NewManager(path)
	m.SetLookup(envMap(nil))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Channel != "@examchan" || cfg.Delivery.Delay != "1s" || cfg.Scheduler.Schedule != "10m" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.Feeds.Results != DefaultResultsURL || cfg.Fetch.UserAgent != DefaultUserAgent {
		t.Fatalf("defaults lost: feeds=%+v fetch=%+v", cfg.Feeds, cfg.Fetch)
	}
	if !cfg.Logging.Console || !cfg.Scheduler.RunOnStart || !cfg.Status.Enabled {
		t.Fatalf("default booleans lost: %+v", cfg)
	}
	if !m.FromFile() {
		t.Fatal("FromFile = false, want true")
	}
}

func TestParseJSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram":{"token":"x","chanel":"@typo"}}`)
	m := NewManager(path)
	m.SetLookup(envMap(nil))
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "chanel") {
		t.Fatalf("Load error = %v, want unknown field error", err)
	}
}

func TestParseMissingFileUsesEnv(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	m.SetLookup(envMap(map[string]string{
		EnvBotToken:      "999:zzz",
		EnvChannel:       "-1001234",
		EnvCheckInterval: "*/2 * * * *",
		EnvPort:          "8081",
		EnvResultsURL:    "https://example.org/results",
	}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" || cfg.Telegram.Channel != "-1001234" {
		t.Fatalf("telegram env not applied: %+v", cfg.Telegram)
	}
	if cfg.Scheduler.Schedule != "*/2 * * * *" {
		t.Fatalf("Schedule = %q, want env value", cfg.Scheduler.Schedule)
	}
	if cfg.Status.Addr != ":8081" {
		t.Fatalf("Status.Addr = %q, want :8081", cfg.Status.Addr)
	}
	if cfg.Feeds.Results != "https://example.org/results" || cfg.Feeds.Notifications != DefaultNotificationsURL {
		t.Fatalf("Feeds = %+v", cfg.Feeds)
	}
	if m.FromFile() {
		t.Fatal("FromFile = true, want false")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "telegram:\n  token: from-file\n")
	m := NewManager(path)
	m.SetLookup(envMap(map[string]string{EnvBotToken: "from-env", EnvLogLevel: "  "}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("Token = %q, want from-env", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("blank env must not override: level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		c := Default()
		c.Telegram.Token = "t"
		return c
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "token", mutate: func(c *Config) { c.Telegram.Token = "" }, wantErr: "telegram.token"},
		{name: "channel", mutate: func(c *Config) { c.Telegram.Channel = "" }, wantErr: "telegram.channel"},
		{name: "feed url", mutate: func(c *Config) { c.Feeds.Results = "ftp://x" }, wantErr: "feeds.results"},
		{name: "relative feed", mutate: func(c *Config) { c.Feeds.Notifications = "/Login/check1" }, wantErr: "feeds.notifications"},
		{name: "schedule", mutate: func(c *Config) { c.Scheduler.Schedule = "sometimes" }, wantErr: "scheduler.schedule"},
		{name: "timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: "scheduler.timezone"},
		{name: "cold start", mutate: func(c *Config) { c.Delivery.ColdStart = "some" }, wantErr: "delivery.cold_start"},
		{name: "delay", mutate: func(c *Config) { c.Delivery.Delay = "-1s" }, wantErr: "delivery.delay"},
		{name: "run timeout", mutate: func(c *Config) { c.Scheduler.RunTimeout = "soon" }, wantErr: "scheduler.run_timeout"},
		{name: "busy timeout", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite", Path: "x", BusyTimeout: "-2s"} }, wantErr: "storage.busy_timeout"},
		{name: "status addr", mutate: func(c *Config) { c.Status.Addr = "3000" }, wantErr: "status.addr"},
		{name: "status off ignores addr", mutate: func(c *Config) { c.Status.Enabled = false; c.Status.Addr = "bad" }},
		{name: "storage path", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, wantErr: "storage.path"},
		{name: "storage driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "mongo", Path: "x"} }, wantErr: "storage.driver"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "log chat", mutate: func(c *Config) { c.Logging.Telegram.Enabled = true }, wantErr: "logging.telegram.chat"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestTimings(t *testing.T) {
	t.Parallel()
	c := Default()
	c.Delivery.Delay = "0s"
	c.Fetch.Timeout = " 15s "
	got, err := c.Timings()
	if err != nil {
		t.Fatalf("Timings error: %v", err)
	}
	if got.DeliveryDelay != 0 || got.FetchTimeout != 15*time.Second || got.RunTimeout != 0 || got.BusyTimeout != 0 {
		t.Fatalf("Timings = %+v", got)
	}

	c.Delivery.Delay = "fast"
	c.Telegram.StartupTimeout = "-1s"
	_, err = c.Timings()
	if err == nil || !strings.Contains(err.Error(), "delivery.delay") || !strings.Contains(err.Error(), "telegram.startup_timeout") {
		t.Fatalf("Timings error = %v, want both keys named", err)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "telegram:\n  token: t\n")
	m := NewManager(path)
	m.SetLookup(envMap(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	ch := m.Subscribe(1)
	t.Cleanup(func() { m.Unsubscribe(ch) })

	if changed, err := m.Reload(); err != nil || changed {
		t.Fatalf("Reload unchanged = (%v, %v), want (false, nil)", changed, err)
	}

	if err := os.WriteFile(path, []byte("telegram:\n  token: t\ndelivery:\n  delay: 5s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err := m.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload = (%v, %v), want (true, nil)", changed, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Delivery.Delay != "5s" {
			t.Fatalf("published delay = %q, want 5s", cfg.Delivery.Delay)
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	if err := os.WriteFile(path, []byte("telegram:\n  token: t\nscheduler:\n  schedule: never\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(); err == nil {
		t.Fatal("invalid config must be rejected")
	}
	if got := m.Get().Delivery.Delay; got != "5s" {
		t.Fatalf("rejected reload replaced config: delay = %q", got)
	}
}

func TestWatchPicksUpEdits(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "telegram:\n  token: t\n")
	m := NewManager(path)
	m.SetLookup(envMap(nil))
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	t.Cleanup(func() { cancel(); <-done })

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		// keep rewriting until the watcher is up and sees a change
		body := "telegram:\n  token: t\nlogging:\n  level: debug\n"
		_ = os.WriteFile(path, []byte(body), 0o600)
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
			}
			return
		case <-deadline:
			t.Fatal("watch did not publish the edited config")
		case <-tick.C:
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Delivery.Delay = "9s"
	b.Telegram.Token = "rotated"
	changed, restart, attrs := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "telegram,delivery" {
		t.Fatalf("changed = %v", changed)
	}
	if strings.Join(restart, ",") != "telegram" {
		t.Fatalf("restart = %v", restart)
	}
	if len(attrs) == 0 {
		t.Fatal("expected log attrs")
	}
}
