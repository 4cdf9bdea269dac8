// Package notify implements the notification channel adapters and the
// retry machinery shared by them.
package notify

import (
	"context"

	"telewatch/internal/config"
	"telewatch/internal/transport"
)

// Channel identifies one notification transport.
type Channel string

const (
	ChannelRelay   Channel = "relay"
	ChannelPush    Channel = "push"
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
)

// Request is the immutable payload built once per matched message and
// handed to every adapter invoked for that match.
type Request struct {
	Text     string
	Source   string
	Keywords []string

	// Origin references the original platform message; only the relay
	// channel consults it.
	Origin transport.MessageRef
}

// Outcome is the per-channel result of one delivery attempt sequence.
type Outcome struct {
	Channel   Channel
	Succeeded bool
	Attempts  int
	Err       string
}

func failure(ch Channel, attempts int, msg string) Outcome {
	if attempts < 1 {
		attempts = 1
	}
	return Outcome{Channel: ch, Succeeded: false, Attempts: attempts, Err: msg}
}

func success(ch Channel, attempts int) Outcome {
	if attempts < 1 {
		attempts = 1
	}
	return Outcome{Channel: ch, Succeeded: true, Attempts: attempts}
}

// Notifier is the adapter contract for one channel.
//
// Send performs the full delivery attempt sequence for one request and
// never panics or returns an error: all failure detail travels in the
// Outcome. Enabled and Configured are separate on purpose: an enabled
// but unconfigured channel is still attempted and reports its own
// failure, rather than being silently skipped.
type Notifier interface {
	Channel() Channel
	Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome
	Enabled(snap *config.Snapshot) bool
	Configured(snap *config.Snapshot) bool
	DisplayStatus(snap *config.Snapshot) string
}
