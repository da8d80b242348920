package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "*/5 * * * *", want: "*/5 * * * *"},
		{raw: " 0 */10 * * * * ", want: "0 */10 * * * *"},
		{raw: "@hourly", want: "@hourly"},
		{raw: "@every 5m", want: "@every 5m"},
		{raw: "10m", want: "@every 10m0s"},
		{raw: "90s", want: "@every 1m30s"},
		{raw: "5", want: "@every 5m0s"},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.raw)
		if err != nil {
			t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSchedule(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "sometimes", "0", "-5m", "500ms", "61 * * * *", "@fortnightly"} {
		if got, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) = %q, want error", raw, got)
		}
	}
}

func TestLoadLocation(t *testing.T) {
	t.Parallel()
	loc, err := LoadLocation("")
	if err != nil || loc != time.Local {
		t.Fatalf("LoadLocation(\"\") = %v, %v; want Local", loc, err)
	}
	loc, err = LoadLocation("UTC")
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("LoadLocation(UTC) = %v, %v", loc, err)
	}
	if _, err := LoadLocation("Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
