package cycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"examnotify/internal/dedup"
	"examnotify/internal/eventbus"
	"examnotify/internal/feed"
	logx "examnotify/pkg/logx"
)

// Runner executes cycles. RunCycle must not be called concurrently; the
// scheduler gate guarantees that in production.
type Runner struct {
	mu  sync.Mutex
	cfg Config

	src    Reader
	engine *dedup.Engine
	out    Deliverer
	log    logx.Logger
	bus    eventbus.Bus
	kinds  []feed.Kind

	seq  uint64
	last *Report
}

func New(cfg Config, src Reader, engine *dedup.Engine, out Deliverer, log logx.Logger, bus eventbus.Bus) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if cfg.ColdStart == "" {
		cfg.ColdStart = ColdStartLatest
	}
	return &Runner{cfg: cfg, src: src, engine: engine, out: out, log: log, bus: bus, kinds: feed.Kinds()}
}

// Apply swaps the policy used by the next feed pass.
func (r *Runner) Apply(cfg Config) {
	if cfg.ColdStart == "" {
		cfg.ColdStart = ColdStartLatest
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// LastRun returns the most recent finished cycle.
func (r *Runner) LastRun() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

// Job adapts RunCycle to the scheduler. Only cancellation is an error;
// feed failures are reported, logged and retried next cycle.
func (r *Runner) Job(ctx context.Context) error {
	rep := r.RunCycle(ctx)
	if rep.Canceled {
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	return nil
}

// RunCycle processes every feed in order and returns what happened.
func (r *Runner) RunCycle(ctx context.Context) Report {
	r.mu.Lock()
	r.seq++
	rep := Report{Seq: r.seq, Started: time.Now()}
	policy := r.cfg.ColdStart
	r.mu.Unlock()

	log := r.log.With(logx.Uint64("cycle", rep.Seq))
	log.Debug("cycle started")
	r.bus.Publish(eventbus.Event{Type: eventbus.TopicCycleStarted, Time: rep.Started, Data: rep})

	for _, kind := range r.kinds {
		if ctx.Err() != nil {
			rep.Canceled = true
			break
		}
		fr, canceled := r.runFeed(ctx, log, kind, policy)
		rep.Feeds = append(rep.Feeds, fr)
		if canceled {
			rep.Canceled = true
			break
		}
	}
	rep.Finished = time.Now()

	r.mu.Lock()
	saved := rep
	r.last = &saved
	r.mu.Unlock()

	fields := []logx.Field{
		logx.Int("delivered", rep.Delivered()),
		logx.Int("failed", rep.Failed()),
		logx.Duration("took", rep.Duration()),
	}
	if rep.Canceled {
		log.Warn("cycle canceled", fields...)
	} else {
		log.Info("cycle finished", fields...)
	}
	r.bus.Publish(eventbus.Event{Type: eventbus.TopicCycleCompleted, Time: rep.Finished, Data: rep})
	return rep
}

// runFeed is one feed pass. canceled reports that the pass stopped before
// every selected item was attempted. Items already attempted are still
// committed then, so the next cycle only announces what was never tried.
func (r *Runner) runFeed(ctx context.Context, log logx.Logger, kind feed.Kind, policy ColdStartPolicy) (fr FeedReport, canceled bool) {
	start := time.Now()
	fr = FeedReport{Kind: kind}
	log = log.With(logx.String("kind", kind.String()))
	defer func() { fr.Duration = time.Since(start) }()

	candidates, err := r.src.Read(ctx, kind)
	if err != nil {
		fr.Error = err.Error()
		if ctx.Err() != nil {
			return fr, true
		}
		log.Warn("feed skipped this cycle", logx.Err(err))
		r.bus.Publish(eventbus.Event{Type: eventbus.TopicFeedFailed, Time: time.Now(), Data: fr})
		return fr, false
	}
	fr.Candidates = len(candidates)

	coldStart := r.engine.Snapshot(kind).Empty()
	newItems, updated := r.engine.Reconcile(kind, candidates)
	fr.New = len(newItems)
	fr.ColdStart = coldStart

	selected := newItems
	if coldStart {
		selected = policy.pick(newItems)
		if len(newItems) > 0 {
			log.Info("cold start", logx.String("policy", string(policy)), logx.Int("new", len(newItems)), logx.Int("announcing", len(selected)))
		}
	}
	fr.Selected = len(selected)

	for i, it := range selected {
		if ctx.Err() != nil {
			r.commitAttempted(log, kind, updated, selected[i:], &fr)
			return fr, true
		}
		err := r.out.Deliver(ctx, it)
		if errors.Is(err, feed.ErrInterrupted) {
			r.commitAttempted(log, kind, updated, selected[i:], &fr)
			return fr, true
		}
		if err != nil {
			fr.Failed++
			if ctx.Err() != nil {
				r.commitAttempted(log, kind, updated, selected[i+1:], &fr)
				return fr, true
			}
			var de *feed.DeliveryError
			if !errors.As(err, &de) {
				log.Warn("delivery failed", logx.String("item", it.Short(60)), logx.Err(err))
			}
			continue
		}
		fr.Delivered++
	}

	r.engine.Commit(kind, updated)
	fr.Committed = true
	if fr.Failed > 0 {
		fr.Error = "some deliveries failed"
	}
	log.Debug("feed committed",
		logx.Int("candidates", fr.Candidates),
		logx.Int("new", fr.New),
		logx.Int("delivered", fr.Delivered),
		logx.Int("failed", fr.Failed),
	)
	return fr, false
}

// commitAttempted commits updated minus the items never attempted. Those stay
// out of the snapshot and come back as new on the next cycle.
func (r *Runner) commitAttempted(log logx.Logger, kind feed.Kind, updated dedup.Snapshot, pending []feed.Item, fr *FeedReport) {
	r.engine.Commit(kind, updated.Without(pending))
	fr.Committed = true
	fr.Error = "delivery interrupted"
	log.Warn("delivery interrupted; committing attempted items",
		logx.Int("delivered", fr.Delivered),
		logx.Int("failed", fr.Failed),
		logx.Int("pending", len(pending)),
	)
}
