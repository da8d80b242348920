package app

import (
	"context"
	"time"

	"examnotify/internal/feed"
	logx "examnotify/pkg/logx"
)

// statusProvider exposes pipeline state to the status server.
type statusProvider struct {
	a *App
}

func (p statusProvider) LastChecked() (time.Time, bool) {
	rep, ok := p.a.runner.LastRun()
	if !ok {
		return time.Time{}, false
	}
	return rep.Finished, true
}

func (p statusProvider) Status(ctx context.Context) map[string]any {
	a := p.a
	snaps := make(map[string]int, len(feed.Kinds()))
	for k, n := range a.engine.Stats() {
		snaps[k.String()] = n
	}
	out := map[string]any{
		"channel":        a.notif.Target().String(),
		"snapshots":      snaps,
		"scheduler":      a.sched.Snapshot(),
		"deliveries":     a.notif.Recent(10),
		"events_dropped": a.bus.Dropped(),
	}
	if rep, ok := a.runner.LastRun(); ok {
		out["last_cycle"] = rep
	}
	if a.store != nil {
		if recs, err := a.store.RecentDeliveries(ctx, 10); err == nil {
			out["audit"] = recs
		} else {
			a.log.Debug("status: audit read failed", logx.Err(err))
		}
	}
	return out
}
