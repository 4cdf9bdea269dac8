package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Chats lists the Telegram chat IDs that are monitored for keyword matches.
	Chats []int64 `json:"chats"`

	// Keywords are matched case-insensitively as substrings against every
	// incoming message. Order is preserved in match output.
	Keywords []string `json:"keywords"`

	Destinations Destinations `json:"destinations"`

	// Dispatch controls retry policy for notification delivery.
	Dispatch DispatchConfig `json:"dispatch,omitempty"`

	Health  HealthConfig   `json:"health,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`

	// LegacyDestination is the pre-destinations schema: a single Telegram
	// forward target. Accepted on load and migrated into Destinations.Relay.
	LegacyDestination *int64 `json:"destination,omitempty"`
}

type TelegramConfig struct {
	// Token may be set directly or left empty to fall back to the
	// TELEGRAM_BOT_TOKEN environment variable.
	Token string `json:"token,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`

	// SendRatePerSec caps outbound Telegram API calls (forwards, sends).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Destinations holds one section per notification channel.
//
// Each section carries its own `enabled` flag; a disabled section's other
// fields are never consulted by the dispatcher.
type Destinations struct {
	Relay   RelayDestination   `json:"relay"`
	Push    PushDestination    `json:"push"`
	Webhook WebhookDestination `json:"webhook"`
	Email   EmailDestination   `json:"email"`
	SMS     SMSDestination     `json:"sms"`
}

// RelayDestination forwards the original Telegram message to another chat.
type RelayDestination struct {
	Enabled bool  `json:"enabled"`
	ChatID  int64 `json:"chat_id,omitempty"`
}

// PushDestination sends ntfy.sh push notifications.
type PushDestination struct {
	Enabled bool   `json:"enabled"`
	Topic   string `json:"topic,omitempty"`
	// Server overrides the default https://ntfy.sh endpoint.
	Server string `json:"server,omitempty"`
}

// WebhookDestination posts a Discord-compatible embed payload.
type WebhookDestination struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
}

// EmailDestination sends via authenticated SMTP. Sender credentials come from
// the environment (EMAIL_ADDRESS / EMAIL_APP_PASSWORD).
type EmailDestination struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients,omitempty"`
	// Host/Port default to Gmail (smtp.gmail.com:465, implicit TLS).
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// SMSDestination sends via Twilio. Account credentials and the sending number
// come from the environment (TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN /
// TWILIO_PHONE_NUMBER).
type SMSDestination struct {
	Enabled bool   `json:"enabled"`
	Phone   string `json:"phone,omitempty"`
}

// DispatchConfig controls the retry executor used by the channel adapters.
//
// All durations are Go duration strings (e.g. "500ms", "1s").
// Defaults (when fields are omitted/zero):
//   - max_attempts: 3
//   - retry_base: "1s"
//   - send_timeout: "30s"
type DispatchConfig struct {
	MaxAttempts int    `json:"max_attempts,omitempty"`
	RetryBase   string `json:"retry_base,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// HealthConfig controls the liveness heartbeat.
//
// Interval is a cron-compatible spec or omitted for the default of every
// minute. The heartbeat writes an RFC3339 timestamp to Path and pings the
// systemd watchdog when one is armed.
type HealthConfig struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path,omitempty"`
	Interval string `json:"interval,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./telewatch_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
