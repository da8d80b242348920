package dedup

import "examnotify/internal/feed"

// Snapshot is an immutable set of items keyed by feed.Identity.
// The zero value is an empty snapshot.
type Snapshot struct {
	items []feed.Item
	index map[feed.Identity]struct{}
}

// NewSnapshot builds a snapshot from items, keeping the first occurrence of
// each identity and the input order.
func NewSnapshot(items []feed.Item) Snapshot {
	if len(items) == 0 {
		return Snapshot{}
	}
	s := Snapshot{
		items: make([]feed.Item, 0, len(items)),
		index: make(map[feed.Identity]struct{}, len(items)),
	}
	for _, it := range items {
		id := it.Identity()
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.items = append(s.items, it)
	}
	return s
}

func (s Snapshot) Len() int    { return len(s.items) }
func (s Snapshot) Empty() bool { return len(s.items) == 0 }

// Contains tests membership by identity only.
func (s Snapshot) Contains(it feed.Item) bool {
	if s.index == nil {
		return false
	}
	_, ok := s.index[it.Identity()]
	return ok
}

// Items returns a copy of the snapshot contents in insertion order.
func (s Snapshot) Items() []feed.Item {
	out := make([]feed.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Without returns a copy of s minus the identities in drop.
func (s Snapshot) Without(drop []feed.Item) Snapshot {
	if len(drop) == 0 || s.Empty() {
		return s
	}
	skip := make(map[feed.Identity]struct{}, len(drop))
	for _, it := range drop {
		skip[it.Identity()] = struct{}{}
	}
	kept := make([]feed.Item, 0, len(s.items))
	for _, it := range s.items {
		if _, ok := skip[it.Identity()]; !ok {
			kept = append(kept, it)
		}
	}
	return NewSnapshot(kept)
}

// Equal reports set equality by identity.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, it := range s.items {
		if !o.Contains(it) {
			return false
		}
	}
	return true
}
