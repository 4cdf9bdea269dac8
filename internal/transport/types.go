package transport

import (
	"context"
	"time"
)

// MessageEvent is one inbound message observed in a monitored chat.
type MessageEvent struct {
	MessageID int
	ChatID    int64
	ChatName  string
	Sender    string
	Text      string
	At        time.Time
}

type ChatTarget struct {
	ChatID int64
}

// MessageRef identifies a previously observed message so it can be
// forwarded verbatim.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Feed produces inbound message events from a chat platform adapter.
type Feed interface {
	Start(ctx context.Context, out chan<- MessageEvent) error
	Stop(ctx context.Context) error
}

// Forwarder relays an original message to another chat, preserving the
// platform's native formatting and attribution.
type Forwarder interface {
	Forward(ctx context.Context, ref MessageRef, to ChatTarget) error
}

// Sender posts plain text to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string) error
}
