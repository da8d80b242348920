package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "examnotify/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestStoreDrivers(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "data", "audit.db")
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: 500 * time.Millisecond}, logx.Nop())
			if err != nil {
				t.Fatalf("Open error: %v", err)
			}
			t.Cleanup(func() { _ = st.Close() })

			ctx := context.Background()
			base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
			for i, c := range []string{"first", "second", "third"} {
				rec := DeliveryRecord{
					At:          base.Add(time.Duration(i) * time.Minute),
					Kind:        "notifications",
					PublishDate: "15/03/2024",
					Content:     c,
					Channel:     "@examchannel",
					MessageID:   100 + i,
					OK:          c != "second",
					TookMS:      12,
				}
				if !rec.OK {
					rec.Error = "Bad Request"
					rec.MessageID = 0
				}
				if err := st.AppendDelivery(ctx, rec); err != nil {
					t.Fatalf("AppendDelivery error: %v", err)
				}
			}
			if err := st.AppendCycle(ctx, CycleRecord{
				Seq: 1, Started: base, Finished: base.Add(time.Second), Delivered: 2, Failed: 1,
				FeedErrors: map[string]string{"results": "fetch results: status 503"},
			}); err != nil {
				t.Fatalf("AppendCycle error: %v", err)
			}

			got, err := st.RecentDeliveries(ctx, 2)
			if err != nil {
				t.Fatalf("RecentDeliveries error: %v", err)
			}
			if len(got) != 2 || got[0].Content != "third" || got[1].Content != "second" {
				t.Fatalf("RecentDeliveries = %+v", got)
			}
			if got[1].OK || got[1].Error != "Bad Request" || !got[0].OK || got[0].MessageID != 102 {
				t.Fatalf("records = %+v", got)
			}
			if !got[0].At.Equal(base.Add(2 * time.Minute)) {
				t.Fatalf("At = %v, want %v", got[0].At, base.Add(2*time.Minute))
			}
		})
	}
}

func TestFileStoreReplaysTail(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.log")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()
	_ = st.AppendDelivery(ctx, DeliveryRecord{Content: "kept", OK: true})
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// a torn trailing line must not prevent reopening
	f, err := os.OpenFile(filepath.Join(filepath.Dir(path), "audit.deliveries.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	_, _ = f.WriteString(`{"content":"torn`)
	_ = f.Close()

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	got, _ := st.RecentDeliveries(ctx, 0)
	if len(got) != 1 || got[0].Content != "kept" {
		t.Fatalf("RecentDeliveries = %+v", got)
	}
	if err := st.AppendDelivery(ctx, DeliveryRecord{Content: "after", OK: true}); err != nil {
		t.Fatalf("AppendDelivery error: %v", err)
	}
	recs, err := loadRecent(filepath.Join(filepath.Dir(path), "audit.deliveries.jsonl"), 10)
	if err != nil || len(recs) != 2 || recs[1].Content != "after" {
		t.Fatalf("replayed = %+v, %v", recs, err)
	}

	b, err := os.ReadFile(filepath.Join(filepath.Dir(path), "audit.cycles.jsonl"))
	if err != nil || strings.TrimSpace(string(b)) != "" {
		t.Fatalf("cycles log = %q, %v; want empty file", b, err)
	}
}

func TestIsLockError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg  string
		want bool
	}{
		{msg: "database is locked (5) (SQLITE_BUSY)", want: true},
		{msg: "database table is locked", want: true},
		{msg: "no such table: deliveries", want: false},
	}
	for _, tt := range tests {
		if got := isLockError(errString(tt.msg)); got != tt.want {
			t.Fatalf("isLockError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
