package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "examnotify/pkg/logx"
)

// recentKeep bounds the in-memory tail served by RecentDeliveries.
const recentKeep = 500

// fileStore appends JSON Lines.
//
// Files:
//   - <prefix>.deliveries.jsonl
//   - <prefix>.cycles.jsonl
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	deliveries *os.File
	cycles     *os.File
	recent     []DeliveryRecord // oldest first
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	deliveriesPath := prefix + ".deliveries.jsonl"
	recent, err := loadRecent(deliveriesPath, recentKeep)
	if err != nil {
		log.Warn("delivery log unreadable; starting empty", logx.String("path", deliveriesPath), logx.Err(err))
		recent = nil
	}

	df, err := os.OpenFile(deliveriesPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := terminateLine(df); err != nil {
		_ = df.Close()
		return nil, err
	}
	cf, err := os.OpenFile(prefix+".cycles.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = df.Close()
		return nil, err
	}

	log.Info("file store opened", logx.String("prefix", prefix), logx.Int("recent", len(recent)))
	return &fileStore{log: log, deliveries: df, cycles: cf, recent: recent}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.deliveries != nil {
		errs = append(errs, s.deliveries.Close())
		s.deliveries = nil
	}
	if s.cycles != nil {
		errs = append(errs, s.cycles.Close())
		s.cycles = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) AppendDelivery(_ context.Context, r DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		return errors.New("delivery log closed")
	}
	if err := json.NewEncoder(s.deliveries).Encode(r); err != nil {
		return err
	}
	s.recent = append(s.recent, r)
	if len(s.recent) > recentKeep {
		s.recent = append([]DeliveryRecord(nil), s.recent[len(s.recent)-recentKeep:]...)
	}
	return nil
}

func (s *fileStore) AppendCycle(_ context.Context, r CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycles == nil {
		return errors.New("cycle log closed")
	}
	return json.NewEncoder(s.cycles).Encode(r)
}

func (s *fileStore) RecentDeliveries(_ context.Context, limit int) ([]DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]DeliveryRecord, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

// loadRecent replays the tail of a JSONL delivery log. Torn lines are skipped.
func loadRecent(path string, keep int) ([]DeliveryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []DeliveryRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r DeliveryRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
		if len(out) > 2*keep {
			out = append([]DeliveryRecord(nil), out[len(out)-keep:]...)
		}
	}
	if len(out) > keep {
		out = out[len(out)-keep:]
	}
	return out, sc.Err()
}

// terminateLine appends a newline when a previous run died mid-record, so the
// next record starts on its own line.
func terminateLine(f *os.File) error {
	fi, err := f.Stat()
	if err != nil || fi.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}
