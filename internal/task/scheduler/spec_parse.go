package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// checkParser accepts 5 or 6 field cron (seconds optional) and descriptors.
var checkParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule turns a check interval into a spec robfig/cron accepts.
//
//	"*/5 * * * *", "@hourly", "@every 5m"   cron, checked as is
//	"10m", "90s"                            every that long
//	"5"                                     every 5 minutes
func ParseSchedule(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("schedule required")
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		if _, err := checkParser.Parse(s); err != nil {
			return "", fmt.Errorf("invalid cron %q: %w", s, err)
		}
		return s, nil
	}

	every, err := time.ParseDuration(s)
	if err != nil {
		mins, aerr := strconv.Atoi(s)
		if aerr != nil {
			return "", fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', a duration like '10m', or minutes)", raw)
		}
		every = time.Duration(mins) * time.Minute
	}
	if every < time.Second {
		return "", fmt.Errorf("interval %q is shorter than 1s", raw)
	}
	return "@every " + every.String(), nil
}

// LoadLocation resolves an IANA timezone name. Empty means time.Local.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
