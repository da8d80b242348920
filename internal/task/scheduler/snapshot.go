package scheduler

// Snapshot returns schedules with next/prev trigger times and recent run history.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	out := Snapshot{Running: s.c != nil}
	if s.loc != nil {
		out.Timezone = s.loc.String()
	} else {
		out.Timezone = s.cfg.Timezone
	}
	for _, d := range s.defs {
		info := ScheduleInfo{
			Name:     d.name,
			Schedule: d.schedule,
			Spec:     d.spec,
			Timeout:  d.timeout,
			Running:  d.state.Running(),
			Runs:     d.runs,
			Skipped:  d.skipped,
		}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		out.Schedules = append(out.Schedules, info)
	}
	s.mu.Unlock()

	s.hmu.Lock()
	out.History = make([]HistoryItem, len(s.history))
	copy(out.History, s.history)
	s.hmu.Unlock()
	return out
}

// Skipped returns the number of dropped triggers for name.
func (s *Service) Skipped(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findLocked(name); d != nil {
		return d.skipped
	}
	return 0
}
