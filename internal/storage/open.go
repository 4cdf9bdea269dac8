package storage

import (
	"context"
	"fmt"
	"strings"

	logx "telewatch/pkg/logx"
)

// Store records delivery attempts and session summaries for later audit.
type Store interface {
	AppendDelivery(ctx context.Context, e DeliveryEntry) error
	AppendSummary(ctx context.Context, e SummaryEntry) error
	Close() error
}

// Open builds the store named by cfg.Driver. A blank or "none" driver
// means auditing is off; callers get (nil, nil) and must nil-check.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
