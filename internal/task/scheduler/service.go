package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"examnotify/internal/eventbus"
	logx "examnotify/pkg/logx"
)

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		bus:  bus,
		base: context.Background(),
		parser: checkParser,
	}
}

// Apply swaps the config. A timezone change restarts cron and re-registers
// every schedule.
func (s *Service) Apply(cfg Config) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if oldTZ != newTZ {
		s.restartLocked()
	}
}

// Start starts cron triggering. Scheduled runs derive their context from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.base = ctx

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, d := range s.defs {
		_ = s.addCronLocked(d)
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop stops triggering and waits for in-flight scheduled runs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Running reports whether cron triggering is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

// run executes d.job through its gate. ok is false when the trigger was dropped.
func (s *Service) run(ctx context.Context, d *scheduleDef, trig Trigger) (ok bool, err error) {
	if !d.state.tryAcquire() {
		s.mu.Lock()
		d.skipped++
		skipped := d.skipped
		s.mu.Unlock()
		s.log.Warn("run skipped; previous run still in flight",
			logx.String("name", d.name), logx.String("trigger", string(trig)), logx.Uint64("skipped", skipped))
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TopicCycleSkipped,
			Time: time.Now(),
			Data: map[string]any{"name": d.name, "trigger": string(trig), "skipped": skipped},
		})
		return false, nil
	}
	defer d.state.release()

	s.mu.Lock()
	d.runs++
	s.mu.Unlock()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := time.Now()
	err = s.call(ctx, d)
	h := HistoryItem{Name: d.name, Trigger: trig, Started: started, Duration: time.Since(started)}
	if err != nil {
		h.Error = err.Error()
		s.log.Error("run failed", logx.String("name", d.name), logx.String("trigger", string(trig)), logx.Duration("took", h.Duration), logx.Err(err))
	} else {
		s.log.Debug("run finished", logx.String("name", d.name), logx.String("trigger", string(trig)), logx.Duration("took", h.Duration))
	}
	s.record(h)
	return true, err
}

func (s *Service) call(ctx context.Context, d *scheduleDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("name", d.name), logx.Any("panic", r))
			err = errPanic(r)
		}
	}()
	return d.job(ctx)
}

func (s *Service) record(h HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, h)
	if over := len(s.history) - limit; over > 0 {
		s.history = append([]HistoryItem(nil), s.history[over:]...)
	}
	s.hmu.Unlock()
}
