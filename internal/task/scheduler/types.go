package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"examnotify/internal/eventbus"
	logx "examnotify/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Timezone    string // IANA TZ, e.g. "Asia/Kolkata"; empty means Local
	HistorySize int
}

// Job is the unit the scheduler triggers.
type Job func(ctx context.Context) error

// RunState is the per-schedule in-flight gate.
type RunState struct {
	mu       sync.Mutex
	inflight int
}

func (s *RunState) tryAcquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

// Running reports whether a run holds the gate.
func (s *RunState) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

type HistoryItem struct {
	Name     string        `json:"name"`
	Trigger  Trigger       `json:"trigger"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type scheduleDef struct {
	name     string
	schedule string // as configured
	spec     string // cron spec or @every
	timeout  time.Duration
	job      Job
	entryID  cron.EntryID
	state    *RunState

	runs    uint64
	skipped uint64
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	// base is the context scheduled runs derive from; set by Start.
	base context.Context

	parser cron.Parser
	c      *cron.Cron
	defs   []*scheduleDef

	hmu     sync.Mutex
	history []HistoryItem
}

type ScheduleInfo struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Spec     string        `json:"spec"`
	Timeout  time.Duration `json:"timeout"`
	Next     time.Time     `json:"next,omitempty"`
	Prev     time.Time     `json:"prev,omitempty"`
	Running  bool          `json:"running"`
	Runs     uint64        `json:"runs"`
	Skipped  uint64        `json:"skipped"`
}

type Snapshot struct {
	Running   bool           `json:"running"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
	History   []HistoryItem  `json:"history"`
}
