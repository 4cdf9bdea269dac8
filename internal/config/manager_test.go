package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestParseJSON(t *testing.T) {
	m := writeConfig(t, "config.json", `{
		"telegram": {"token": "tok", "poll_timeout": "5s"},
		"logging": {"level": "DEBUG", "console": true, "file": {"enabled": false, "path": ""}},
		"chats": [-100123, 456],
		"keywords": ["python", "remote"],
		"destinations": {
			"relay": {"enabled": true, "chat_id": 789},
			"push": {"enabled": true, "topic": "jobs"},
			"webhook": {"enabled": false},
			"email": {"enabled": true, "recipients": ["a@example.com"]},
			"sms": {"enabled": false}
		}
	}`)

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "tok" || len(cfg.Chats) != 2 || len(cfg.Keywords) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Destinations.Push.Enabled || cfg.Destinations.Push.Topic != "jobs" {
		t.Fatalf("push destination mismatch: %+v", cfg.Destinations.Push)
	}
	if cfg.Destinations.Relay.ChatID != 789 {
		t.Fatalf("relay chat = %d", cfg.Destinations.Relay.ChatID)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := writeConfig(t, "config.json", `{"keywrods": ["typo"]}`)
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := writeConfig(t, "config.json", `{"keywords": []}{"keywords": []}`)
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected error for trailing data")
	}
}

func TestParseYAML(t *testing.T) {
	m := writeConfig(t, "config.yaml", `
telegram:
  token: tok
chats:
  - 111
keywords:
  - golang
destinations:
  push:
    enabled: true
    topic: jobs
`)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	if cfg.Telegram.Token != "tok" || len(cfg.Chats) != 1 || cfg.Chats[0] != 111 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Destinations.Push.Enabled {
		t.Fatalf("push destination not parsed from yaml")
	}
}

func TestLegacyDestinationMigration(t *testing.T) {
	m := writeConfig(t, "config.json", `{"keywords": ["go"], "destination": 4242}`)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LegacyDestination != nil {
		t.Fatalf("legacy field not cleared")
	}
	r := cfg.Destinations.Relay
	if !r.Enabled || r.ChatID != 4242 {
		t.Fatalf("legacy destination not migrated to relay: %+v", r)
	}
}

func TestLegacyMigrationDoesNotClobberRelay(t *testing.T) {
	m := writeConfig(t, "config.json", `{
		"destination": 4242,
		"destinations": {"relay": {"enabled": true, "chat_id": 1}, "push": {"enabled": false}, "webhook": {"enabled": false}, "email": {"enabled": false}, "sms": {"enabled": false}}
	}`)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Destinations.Relay.ChatID != 1 {
		t.Fatalf("explicit relay config overwritten by legacy migration: %+v", cfg.Destinations.Relay)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "INFO" || !cfg.Logging.Console {
		t.Fatalf("unexpected defaults: %+v", cfg.Logging)
	}
	if m.Get() != cfg {
		t.Fatalf("defaults not committed")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	cfg := &Config{
		Chats:    []int64{1, 2},
		Keywords: []string{"go"},
		Destinations: Destinations{
			Email: EmailDestination{Enabled: true, Recipients: []string{"a@example.com"}},
		},
	}
	snap := cfg.Snapshot(Credentials{EmailAddress: "me@example.com"})

	cfg.Chats[0] = 999
	cfg.Keywords[0] = "mutated"
	cfg.Destinations.Email.Recipients[0] = "evil@example.com"

	if snap.Chats[0] != 1 || snap.Keywords[0] != "go" {
		t.Fatalf("snapshot aliases config slices: %+v", snap)
	}
	if snap.Destinations.Email.Recipients[0] != "a@example.com" {
		t.Fatalf("snapshot aliases recipient list")
	}
	if snap.Creds.EmailAddress != "me@example.com" {
		t.Fatalf("credentials not carried: %+v", snap.Creds)
	}
}

func TestSummarizeChangeRestartFlag(t *testing.T) {
	base := &Config{Keywords: []string{"go"}, Chats: []int64{1}}

	noop := &Config{Keywords: []string{"go"}, Chats: []int64{1}}
	if sections, _, restart := SummarizeChange(base, noop); len(sections) != 0 || restart {
		t.Fatalf("no-op change flagged: sections=%v restart=%v", sections, restart)
	}

	kw := &Config{Keywords: []string{"go", "rust"}, Chats: []int64{1}}
	if _, _, restart := SummarizeChange(base, kw); !restart {
		t.Fatalf("keyword change should require session restart")
	}

	logOnly := &Config{Keywords: []string{"go"}, Chats: []int64{1},
		Logging: LoggingConfig{Level: "DEBUG"}}
	if _, _, restart := SummarizeChange(base, logOnly); restart {
		t.Fatalf("logging change should not require session restart")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 10s "); err != nil || d.Seconds() != 10 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero: %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}
