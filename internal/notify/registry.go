package notify

import (
	"net/http"
	"time"

	"telewatch/internal/transport"
	logx "telewatch/pkg/logx"
)

// Registry is the static channel table: one adapter per channel tag,
// resolved at startup. Adding a channel means adding a tag and an
// adapter here.
type Registry struct {
	order []Notifier
	byTag map[Channel]Notifier
}

// NewRegistry builds the adapter set. fwd may be nil when no platform
// transport is available; the relay adapter then reports failure on use.
func NewRegistry(fwd transport.Forwarder, exec Executor, log logx.Logger) *Registry {
	httpc := &http.Client{Timeout: 30 * time.Second}

	adapters := []Notifier{
		&relayNotifier{fwd: fwd, log: log.With(logx.String("channel", string(ChannelRelay)))},
		&pushNotifier{exec: exec, http: httpc, log: log.With(logx.String("channel", string(ChannelPush)))},
		&webhookNotifier{exec: exec, http: httpc, log: log.With(logx.String("channel", string(ChannelWebhook)))},
		&emailNotifier{exec: exec, log: log.With(logx.String("channel", string(ChannelEmail)))},
		&smsNotifier{exec: exec, log: log.With(logx.String("channel", string(ChannelSMS)))},
	}

	byTag := make(map[Channel]Notifier, len(adapters))
	for _, a := range adapters {
		byTag[a.Channel()] = a
	}
	return &Registry{order: adapters, byTag: byTag}
}

// RegistryOf builds a registry from an explicit adapter list. Mainly
// useful for wiring test doubles.
func RegistryOf(adapters ...Notifier) *Registry {
	byTag := make(map[Channel]Notifier, len(adapters))
	for _, a := range adapters {
		byTag[a.Channel()] = a
	}
	return &Registry{order: adapters, byTag: byTag}
}

// All returns the adapters in their display order.
func (r *Registry) All() []Notifier { return r.order }

// Get returns the adapter for a channel tag, or nil.
func (r *Registry) Get(ch Channel) Notifier { return r.byTag[ch] }
