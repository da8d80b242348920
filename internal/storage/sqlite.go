package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "examnotify/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

type deliveryRow struct {
	AtMS           int64  `db:"at_ms"`
	Kind           string `db:"kind"`
	PublishDate    string `db:"publish_date"`
	Content        string `db:"content"`
	AttachmentLink string `db:"attachment_link"`
	Channel        string `db:"channel"`
	MessageID      int    `db:"message_id"`
	OK             bool   `db:"ok"`
	Error          string `db:"error"`
	TookMS         int64  `db:"took_ms"`
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// exec retries lock errors with backoff; other errors stop at once.
func (s *sqliteStore) exec(ctx context.Context, op string, fn func() error) error {
	var final error
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		err := fn()
		if err != nil && isLockError(err) {
			return err // retry
		}
		final = err
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if final != nil {
		return fmt.Errorf("%s: %w", op, final)
	}
	return nil
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	row := deliveryRow{
		AtMS:           r.At.UnixMilli(),
		Kind:           r.Kind,
		PublishDate:    r.PublishDate,
		Content:        r.Content,
		AttachmentLink: r.AttachmentLink,
		Channel:        r.Channel,
		MessageID:      r.MessageID,
		OK:             r.OK,
		Error:          r.Error,
		TookMS:         r.TookMS,
	}
	return s.exec(ctx, "append delivery", func() error {
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO deliveries (at_ms, kind, publish_date, content, attachment_link, channel, message_id, ok, error, took_ms)
			VALUES (:at_ms, :kind, :publish_date, :content, :attachment_link, :channel, :message_id, :ok, :error, :took_ms)`, row)
		return err
	})
}

func (s *sqliteStore) AppendCycle(ctx context.Context, r CycleRecord) error {
	var feedErrs string
	if len(r.FeedErrors) > 0 {
		b, err := json.Marshal(r.FeedErrors)
		if err != nil {
			return fmt.Errorf("marshal feed errors: %w", err)
		}
		feedErrs = string(b)
	}
	return s.exec(ctx, "append cycle", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cycles (seq, started_ms, finished_ms, canceled, delivered, failed, feed_errors)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Seq, r.Started.UnixMilli(), r.Finished.UnixMilli(), r.Canceled, r.Delivered, r.Failed, feedErrs)
		return err
	})
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = recentKeep
	}
	var rows []deliveryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT at_ms, kind, publish_date, content, COALESCE(attachment_link, '') AS attachment_link,
		       channel, message_id, ok, COALESCE(error, '') AS error, took_ms
		FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select deliveries: %w", err)
	}
	out := make([]DeliveryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, DeliveryRecord{
			At:             time.UnixMilli(r.AtMS),
			Kind:           r.Kind,
			PublishDate:    r.PublishDate,
			Content:        r.Content,
			AttachmentLink: r.AttachmentLink,
			Channel:        r.Channel,
			MessageID:      r.MessageID,
			OK:             r.OK,
			Error:          r.Error,
			TookMS:         r.TookMS,
		})
	}
	return out, nil
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
