package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"examnotify/internal/eventbus"
	"examnotify/internal/feed"
	kit "examnotify/internal/transport"
	logx "examnotify/pkg/logx"
)

type sent struct {
	at   time.Time
	to   kit.ChatTarget
	text string
	opt  kit.SendOptions
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]error // keyed by message text
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[text]; err != nil {
		return kit.MessageRef{}, err
	}
	var o kit.SendOptions
	if opt != nil {
		o = *opt
	}
	f.sent = append(f.sent, sent{at: time.Now(), to: to, text: text, opt: o})
	return kit.MessageRef{ChatID: -100, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

var channel = kit.ChatTarget{Username: "@examchannel"}

func item(content string) feed.Item {
	return feed.Item{Kind: feed.KindNotifications, PublishDate: "15/03/2024", Content: content}
}

func TestDeliverSpacesSends(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	const delay = 60 * time.Millisecond
	s := New(Config{Delay: delay}, fs, channel, logx.Nop(), nil)

	for _, c := range []string{"a", "b", "c"} {
		if err := s.Deliver(context.Background(), item(c)); err != nil {
			t.Fatalf("Deliver(%s) error: %v", c, err)
		}
	}
	got := fs.all()
	if len(got) != 3 {
		t.Fatalf("sent = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		// small slack for timer granularity
		if gap := got[i].at.Sub(got[i-1].at); gap < delay-10*time.Millisecond {
			t.Fatalf("gap %d = %v, want >= %v", i, gap, delay)
		}
	}
	for _, m := range got {
		if m.to != channel {
			t.Fatalf("target = %v, want %v", m.to, channel)
		}
		if m.opt.ParseMode != kit.ParseModeMarkdown || m.opt.DisablePreview {
			t.Fatalf("options = %+v, want markdown with preview", m.opt)
		}
	}
}

func TestDeliverFailure(t *testing.T) {
	t.Parallel()
	bad := item("broken")
	fs := &fakeSender{fail: map[string]error{Format(bad): errors.New("Bad Request: can't parse entities")}}
	bus := eventbus.New()
	events, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	s := New(Config{}, fs, channel, logx.Nop(), bus)
	err := s.Deliver(context.Background(), bad)
	var de *feed.DeliveryError
	if !errors.As(err, &de) || de.Item != bad {
		t.Fatalf("err = %v, want DeliveryError for the item", err)
	}

	select {
	case ev := <-events:
		if ev.Type != eventbus.TopicDeliveryFailed {
			t.Fatalf("event = %s, want %s", ev.Type, eventbus.TopicDeliveryFailed)
		}
		if de, ok := ev.Data.(DeliveryEvent); !ok || de.Error == "" || de.Channel != "@examchannel" {
			t.Fatalf("event data = %+v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	if err := s.Deliver(context.Background(), item("fine")); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	h := s.Recent(0)
	if len(h) != 2 || h[0].Error == "" || h[1].MessageID != 1 {
		t.Fatalf("history = %+v", h)
	}
}

func TestDeliverDeadlineBeforeSlotIsInterruption(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{Delay: time.Hour}, fs, channel, logx.Nop(), nil)
	if err := s.Deliver(context.Background(), item("first")); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	// The limiter gives up at once when the next slot is past the deadline,
	// long before ctx itself is done.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := s.Deliver(ctx, item("second"))
	if !errors.Is(err, feed.ErrInterrupted) {
		t.Fatalf("err = %v, want feed.ErrInterrupted", err)
	}
	var de *feed.DeliveryError
	if errors.As(err, &de) {
		t.Fatalf("err = %v is a DeliveryError; the item was never sent", err)
	}
	if ctx.Err() != nil {
		t.Fatal("deadline already passed; want early limiter refusal")
	}
	if n := len(fs.all()); n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}
	if h := s.Recent(10); len(h) != 1 {
		t.Fatalf("history = %+v, want only the first send", h)
	}
}

func TestDeliverCanceledWhileWaiting(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(Config{Delay: time.Hour}, fs, channel, logx.Nop(), nil)
	if err := s.Deliver(context.Background(), item("first")); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Deliver(ctx, item("second")); !errors.Is(err, feed.ErrInterrupted) {
		t.Fatalf("err = %v, want feed.ErrInterrupted", err)
	}
	if n := len(fs.all()); n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}
}

func TestDeliverWithoutTarget(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeSender{}, kit.ChatTarget{}, logx.Nop(), nil)
	if err := s.Deliver(context.Background(), item("x")); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v, want ErrNoTarget", err)
	}
}

func TestRecentIsBounded(t *testing.T) {
	t.Parallel()
	s := New(Config{HistorySize: 2}, &fakeSender{}, channel, logx.Nop(), nil)
	for _, c := range []string{"a", "b", "c"} {
		_ = s.Deliver(context.Background(), item(c))
	}
	h := s.Recent(0)
	if len(h) != 2 || h[0].Content != "b" || h[1].Content != "c" {
		t.Fatalf("history = %+v", h)
	}
	if got := s.Recent(1); len(got) != 1 || got[0].Content != "c" {
		t.Fatalf("Recent(1) = %+v", got)
	}
}
