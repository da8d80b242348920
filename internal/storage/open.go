package storage

import (
	"context"
	"errors"
	"strings"

	logx "examnotify/pkg/logx"
)

// Store is the audit API used by the app.
type Store interface {
	AppendDelivery(ctx context.Context, r DeliveryRecord) error
	AppendCycle(ctx context.Context, r CycleRecord) error
	// RecentDeliveries returns up to limit records, newest first.
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(context.Background(), cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
