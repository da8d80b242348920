package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "examnotify/pkg/logx"
)

var ErrUnknownSchedule = errors.New("unknown schedule")

func errPanic(r any) error { return fmt.Errorf("panic: %v", r) }

// AddSchedule parses schedule and registers job under name, replacing any
// schedule with the same name. See ParseSchedule for the accepted forms.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job Job) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := &scheduleDef{
		name:     name,
		schedule: schedule,
		spec:     spec,
		timeout:  timeout,
		job:      job,
		state:    &RunState{},
	}
	// Upsert keeps the gate so a hot reload cannot start a second concurrent run.
	if old := s.findLocked(name); old != nil {
		d.state = old.state
		d.runs, d.skipped = old.runs, old.skipped
		s.removeLocked(name)
	}
	s.defs = append(s.defs, d)
	if s.c == nil {
		return name, nil
	}
	if err := s.addCronLocked(d); err != nil {
		s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return name, err
	}
	args := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout)}
	if next := s.previewNextRunsLocked(spec, 3); next != "" {
		args = append(args, logx.String("next", next))
	}
	s.log.Debug("schedule registered", args...)
	return name, nil
}

// Reschedule changes the schedule and timeout of an existing job.
func (s *Service) Reschedule(name, schedule string, timeout time.Duration) error {
	s.mu.Lock()
	d := s.findLocked(name)
	s.mu.Unlock()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	_, err := s.AddSchedule(name, schedule, timeout, d.job)
	return err
}

// RunNow runs the named job in the calling goroutine, through the same gate
// as scheduled triggers. ran is false when a run was already in flight.
func (s *Service) RunNow(ctx context.Context, name string) (ran bool, err error) {
	s.mu.Lock()
	d := s.findLocked(name)
	s.mu.Unlock()
	if d == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return s.run(ctx, d, TriggerManual)
}

func (s *Service) findLocked(name string) *scheduleDef {
	for _, d := range s.defs {
		if d.name == name {
			return d
		}
	}
	return nil
}

func (s *Service) removeLocked(name string) bool {
	for i, d := range s.defs {
		if d.name != name {
			continue
		}
		if s.c != nil && d.entryID != 0 {
			s.c.Remove(d.entryID)
		}
		s.defs = append(s.defs[:i], s.defs[i+1:]...)
		return true
	}
	return false
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	if s.c == nil {
		return nil
	}
	id, err := s.c.AddFunc(d.spec, func() {
		s.mu.Lock()
		base := s.base
		s.mu.Unlock()
		_, _ = s.run(base, d, TriggerSchedule)
	})
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

// restartLocked rebuilds cron with the current location. Call with s.mu held.
func (s *Service) restartLocked() {
	old := s.c
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, d := range s.defs {
		d.entryID = 0
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("schedule re-register failed", logx.String("name", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	if old != nil {
		// Running jobs finish on their own; only triggering moves over.
		old.Stop()
	}
	s.log.Info("cron restarted", logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", s.cfg.Timezone), logx.Err(err))
		return time.Local
	}
	return loc
}

// previewNextRunsLocked returns a short list of upcoming run times for spec.
// Call with s.mu held.
func (s *Service) previewNextRunsLocked(spec string, n int) string {
	if !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	t := time.Now().In(loc)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t.Format("2006-01-02 15:04:05"))
	}
	return strings.Join(out, ", ")
}
