package dedup

import (
	"sync"

	"examnotify/internal/feed"
)

// Engine owns the per-feed snapshots.
//
// Only the cycle path calls Reconcile and Commit; the mutex lets status
// readers take a consistent copy while a cycle runs.
type Engine struct {
	mu    sync.RWMutex
	snaps map[feed.Kind]Snapshot
}

func New() *Engine {
	return &Engine{snaps: map[feed.Kind]Snapshot{}}
}

// Reconcile returns the candidates that are not in kind's snapshot, in input
// order, and the snapshot that should replace it once delivery was attempted.
//
// It does not change engine state.
func (e *Engine) Reconcile(kind feed.Kind, candidates []feed.Item) ([]feed.Item, Snapshot) {
	cur := e.Snapshot(kind)

	fresh := make([]feed.Item, 0, len(candidates))
	emitted := make(map[feed.Identity]struct{}, len(candidates))
	for _, it := range candidates {
		if cur.Contains(it) {
			continue
		}
		id := it.Identity()
		if _, ok := emitted[id]; ok {
			continue
		}
		emitted[id] = struct{}{}
		fresh = append(fresh, it)
	}
	return fresh, NewSnapshot(candidates)
}

// Commit makes s the snapshot of record for kind.
func (e *Engine) Commit(kind feed.Kind, s Snapshot) {
	e.mu.Lock()
	if e.snaps == nil {
		e.snaps = map[feed.Kind]Snapshot{}
	}
	e.snaps[kind] = s
	e.mu.Unlock()
}

// Snapshot returns the committed snapshot for kind (empty if none).
func (e *Engine) Snapshot(kind feed.Kind) Snapshot {
	e.mu.RLock()
	s := e.snaps[kind]
	e.mu.RUnlock()
	return s
}

// Stats returns the committed snapshot size per feed.
func (e *Engine) Stats() map[feed.Kind]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[feed.Kind]int, len(e.snaps))
	for k, s := range e.snaps {
		out[k] = s.Len()
	}
	return out
}
