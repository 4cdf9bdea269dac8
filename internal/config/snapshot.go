package config

import (
	"os"
	"strings"
)

// Credentials holds channel transport secrets sourced from the environment.
// They are read once at startup (optionally seeded from a .env file) and then
// treated as immutable.
type Credentials struct {
	BotToken string

	EmailAddress  string
	EmailPassword string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

func LoadCredentials() Credentials {
	get := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return Credentials{
		BotToken:         get("TELEGRAM_BOT_TOKEN"),
		EmailAddress:     get("EMAIL_ADDRESS"),
		EmailPassword:    get("EMAIL_APP_PASSWORD"),
		TwilioAccountSID: get("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  get("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       get("TWILIO_PHONE_NUMBER"),
	}
}

// Snapshot is the immutable per-session view handed to the dispatcher and the
// channel adapters. The monitoring session never reads live config state; a
// config change takes effect by starting a new session with a new snapshot.
type Snapshot struct {
	Chats        []int64
	Keywords     []string
	Destinations Destinations
	Creds        Credentials
}

// Snapshot deep-copies the mutable slices so a hot-reloaded config cannot
// alias state inside a running session.
func (c *Config) Snapshot(creds Credentials) *Snapshot {
	if c == nil {
		return &Snapshot{Creds: creds}
	}
	s := &Snapshot{
		Chats:        append([]int64(nil), c.Chats...),
		Keywords:     append([]string(nil), c.Keywords...),
		Destinations: c.Destinations,
		Creds:        creds,
	}
	s.Destinations.Email.Recipients = append([]string(nil), c.Destinations.Email.Recipients...)
	return s
}
