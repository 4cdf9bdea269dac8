package health

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "telewatch/pkg/logx"
)

func TestBeatWritesTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.txt")
	s := New(Config{Enabled: true, Path: path}, logx.Nop())

	s.beat()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(b)))
	if err != nil {
		t.Fatalf("heartbeat is not RFC3339: %q (%v)", b, err)
	}
	if time.Since(ts) > time.Minute {
		t.Fatalf("heartbeat timestamp stale: %v", ts)
	}
}

func TestDefaultPath(t *testing.T) {
	s := New(Config{}, logx.Nop())
	if got := s.path(); got != defaultPath {
		t.Fatalf("path = %q, want %q", got, defaultPath)
	}
}
