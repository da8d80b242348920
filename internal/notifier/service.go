package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"examnotify/internal/eventbus"
	"examnotify/internal/feed"
	kit "examnotify/internal/transport"
	logx "examnotify/pkg/logx"
)

var ErrNoTarget = errors.New("notifier: no channel configured")

const defaultHistorySize = 100

// Service delivers items one at a time. It is safe for concurrent use, but
// the limiter serializes sends anyway.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	target kit.ChatTarget
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, target kit.ChatTarget, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{
		log:     log,
		sender:  sender,
		target:  target,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	s.applyLocked(cfg)
	return s
}

// Apply changes pacing without dropping the limiter's current reservation.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	s.cfg = cfg
	if cfg.Delay == 0 {
		s.limiter.SetLimit(rate.Inf)
		return
	}
	// burst 1: the first send goes out at once, every later one waits Delay
	s.limiter.SetLimit(rate.Every(cfg.Delay))
}

// Target returns the channel deliveries go to.
func (s *Service) Target() kit.ChatTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Deliver waits for a send slot and posts item to the channel.
// A send failure is a *feed.DeliveryError. If ctx ends before a slot opens,
// nothing is sent and the error wraps feed.ErrInterrupted instead.
func (s *Service) Deliver(ctx context.Context, item feed.Item) error {
	s.mu.Lock()
	target := s.target
	lim := s.limiter
	s.mu.Unlock()

	if target.IsZero() {
		return s.failed(item, target, 0, ErrNoTarget)
	}
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("%w: wait for send slot: %v", feed.ErrInterrupted, err)
	}

	start := time.Now()
	ref, err := s.sender.SendText(ctx, target, Format(item), &kit.SendOptions{
		ParseMode:      kit.ParseModeMarkdown,
		DisablePreview: false,
	})
	took := time.Since(start)
	if err != nil {
		return s.failed(item, target, took, err)
	}

	now := time.Now()
	s.log.Info("item delivered",
		logx.String("kind", item.Kind.String()),
		logx.String("date", item.PublishDate),
		logx.String("item", item.Short(60)),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", took),
	)
	s.appendHistory(HistoryItem{At: now, Kind: item.Kind, Content: item.Content, PublishDate: item.PublishDate, MessageID: ref.MessageID})
	s.bus.Publish(eventbus.Event{Type: eventbus.TopicDeliverySent, Time: now, Data: DeliveryEvent{
		Item: item, Channel: target.String(), MessageID: ref.MessageID, Took: took, At: now,
	}})
	return nil
}

func (s *Service) failed(item feed.Item, target kit.ChatTarget, took time.Duration, err error) error {
	now := time.Now()
	s.log.Warn("delivery failed",
		logx.String("kind", item.Kind.String()),
		logx.String("item", item.Short(60)),
		logx.Err(err),
	)
	s.appendHistory(HistoryItem{At: now, Kind: item.Kind, Content: item.Content, PublishDate: item.PublishDate, Error: err.Error()})
	s.bus.Publish(eventbus.Event{Type: eventbus.TopicDeliveryFailed, Time: now, Data: DeliveryEvent{
		Item: item, Channel: target.String(), Took: took, At: now, Error: err.Error(),
	}})
	return &feed.DeliveryError{Item: item, Err: err}
}

// Recent returns up to n recent delivery results, newest last. n <= 0 means all.
func (s *Service) Recent(n int) []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	h := s.history
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]HistoryItem(nil), h...)
}

func (s *Service) appendHistory(h HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, h)
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.hmu.Unlock()
}
