package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"examnotify/internal/eventbus"
	logx "examnotify/pkg/logx"
)

func TestRunNowDropsOverlappingRun(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	s := New(Config{}, logx.Nop(), bus)
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	if _, err := s.AddSchedule("poll", "*/5 * * * *", 0, func(ctx context.Context) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}

	done := make(chan bool, 1)
	go func() {
		ran, _ := s.RunNow(context.Background(), "poll")
		done <- ran
	}()
	<-entered

	ran, err := s.RunNow(context.Background(), "poll")
	if err != nil || ran {
		t.Fatalf("second RunNow = %v, %v; want dropped", ran, err)
	}
	if got := s.Skipped("poll"); got != 1 {
		t.Fatalf("Skipped = %d, want 1", got)
	}
	select {
	case ev := <-events:
		if ev.Type != eventbus.TopicCycleSkipped {
			t.Fatalf("event = %s, want %s", ev.Type, eventbus.TopicCycleSkipped)
		}
	case <-time.After(time.Second):
		t.Fatal("no skip event published")
	}

	close(release)
	if !<-done {
		t.Fatal("first RunNow reported not ran")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	// The gate is released once the run returns.
	ran, err = s.RunNow(context.Background(), "poll")
	if err != nil || !ran {
		t.Fatalf("third RunNow = %v, %v; want ran", ran, err)
	}
}

func TestRunNowTimeoutAndHistory(t *testing.T) {
	t.Parallel()
	s := New(Config{HistorySize: 2}, logx.Nop(), nil)
	if _, err := s.AddSchedule("slow", "1h", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}

	for i := 0; i < 3; i++ {
		ran, err := s.RunNow(context.Background(), "slow")
		if !ran || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("RunNow = %v, %v; want deadline exceeded", ran, err)
		}
	}
	snap := s.Snapshot()
	if len(snap.History) != 2 {
		t.Fatalf("history len = %d, want 2", len(snap.History))
	}
	if snap.History[0].Trigger != TriggerManual || snap.History[0].Error == "" {
		t.Fatalf("history[0] = %+v", snap.History[0])
	}
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "@every 1h0m0s" || snap.Schedules[0].Runs != 3 {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	_, _ = s.AddSchedule("boom", "5m", 0, func(ctx context.Context) error { panic("bad") })
	ran, err := s.RunNow(context.Background(), "boom")
	if !ran || err == nil {
		t.Fatalf("RunNow = %v, %v; want panic error", ran, err)
	}
	// The gate must not stay held after a panic.
	if s.Snapshot().Schedules[0].Running {
		t.Fatal("schedule still marked running")
	}
}

func TestRunNowUnknown(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	if _, err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("err = %v, want ErrUnknownSchedule", err)
	}
	if err := s.Reschedule("missing", "5m", 0); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("Reschedule err = %v, want ErrUnknownSchedule", err)
	}
}

func TestAddScheduleRejectsBadCron(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	if _, err := s.AddSchedule("bad", "61 * * * *", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for out-of-range cron field")
	}
}

func TestStartTriggersAndReschedule(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, logx.Nop(), nil)
	fired := make(chan struct{}, 8)
	if _, err := s.AddSchedule("tick", "1h", 0, func(ctx context.Context) error {
		fired <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("AddSchedule error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	t.Cleanup(func() { s.Stop(context.Background()) })

	snap := s.Snapshot()
	if !snap.Running || snap.Timezone != "UTC" || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := s.Reschedule("tick", "@every 1s", 0); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("rescheduled job never fired")
	}
	if got := s.Snapshot().Schedules[0].Schedule; got != "@every 1s" {
		t.Fatalf("schedule = %q, want @every 1s", got)
	}
}
