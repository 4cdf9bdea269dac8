package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "telewatch/pkg/logx"
)

// fileStore appends JSON Lines to two files derived from the configured
// path: <prefix>.deliveries.jsonl and <prefix>.sessions.jsonl. Appends
// are serialized by a mutex; there is no rotation.
type fileStore struct {
	log logx.Logger

	mu         sync.Mutex
	deliveries *os.File
	sessions   *os.File
}

type deliveryRecord struct {
	At        string `json:"at"`
	Channel   string `json:"channel"`
	Source    string `json:"source,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
	Succeeded bool   `json:"succeeded"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

type sessionRecord struct {
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
	Seen      uint64 `json:"seen"`
	Matched   uint64 `json:"matched"`
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// "audit.jsonl" and "audit" both yield the prefix "audit".
	prefix := strings.TrimSuffix(path, filepath.Ext(path))

	df, err := openAppend(prefix + ".deliveries.jsonl")
	if err != nil {
		return nil, err
	}
	sf, err := openAppend(prefix + ".sessions.jsonl")
	if err != nil {
		_ = df.Close()
		return nil, err
	}
	return &fileStore{log: log, deliveries: df, sessions: sf}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func (s *fileStore) AppendDelivery(_ context.Context, e DeliveryEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	rec := deliveryRecord{
		At:        e.At.Format(time.RFC3339Nano),
		Channel:   e.Channel,
		Source:    e.Source,
		Keywords:  e.Keywords,
		Succeeded: e.Succeeded,
		Attempts:  e.Attempts,
		Error:     e.Error,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		return errors.New("deliveries file closed")
	}
	return json.NewEncoder(s.deliveries).Encode(rec)
}

func (s *fileStore) AppendSummary(_ context.Context, e SummaryEntry) error {
	rec := sessionRecord{
		StartedAt: e.StartedAt.Format(time.RFC3339Nano),
		EndedAt:   e.EndedAt.Format(time.RFC3339Nano),
		Seen:      e.Seen,
		Matched:   e.Matched,
		Sent:      e.Sent,
		Failed:    e.Failed,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		return errors.New("sessions file closed")
	}
	return json.NewEncoder(s.sessions).Encode(rec)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range []**os.File{&s.deliveries, &s.sessions} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		*f = nil
	}
	return firstErr
}
