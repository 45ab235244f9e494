package auditlog

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "tokobot/pkg/logx"
)

// Store is the append-only delivery log API the pipeline depends on.
// No update or delete is exposed; history is permanent from this core's view.
type Store interface {
	// Append persists one entry and returns its generated id.
	Append(ctx context.Context, e Entry) (string, error)
	GetByID(ctx context.Context, id string) (Entry, bool, error)
	// ListFailedSince returns failure entries recorded at or after since,
	// oldest first.
	ListFailedSince(ctx context.Context, since time.Time) ([]Entry, error)
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
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown audit log driver: " + driver)
	}
}
