package config

import (
	"reflect"

	logx "examnotify/pkg/logx"
)

// SummarizeChange lists the config sections that differ between oldCfg and
// newCfg, the subset of those that only take effect after a restart, and
// safe log fields describing the new values. Secrets are never included.
func SummarizeChange(oldCfg, newCfg *Config) (changed, restart []string, attrs []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		restart = append(restart, "telegram")
		attrs = append(attrs,
			logx.String("telegram.channel", newCfg.Telegram.Channel),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}
	if oldCfg.Feeds != newCfg.Feeds {
		changed = append(changed, "feeds")
		restart = append(restart, "feeds")
	}
	if oldCfg.Fetch != newCfg.Fetch {
		changed = append(changed, "fetch")
		restart = append(restart, "fetch")
	}
	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.String("delivery.delay", newCfg.Delivery.Delay),
			logx.String("delivery.cold_start", newCfg.Delivery.ColdStart),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.schedule", newCfg.Scheduler.Schedule),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		restart = append(restart, "status")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	return changed, restart, attrs
}
