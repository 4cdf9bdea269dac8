package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config selects the audit backend. Driver "file" appends JSON Lines,
// "sqlite" writes a database file (requires the sqlite build tag), and an
// empty or "none" driver disables auditing entirely.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 uses the driver default
}

// DeliveryEntry records one notification delivery outcome. Keywords is a
// comma-joined list so the schema stays flat.
type DeliveryEntry struct {
	At        time.Time
	Channel   string
	Source    string
	Keywords  string
	Succeeded bool
	Attempts  int
	Error     string
}

// SummaryEntry records the counters of one finished monitoring session.
type SummaryEntry struct {
	StartedAt time.Time
	EndedAt   time.Time
	Seen      uint64
	Matched   uint64
	Sent      uint64
	Failed    uint64
}
