package notify

import (
	"context"
	"strconv"

	"telewatch/internal/config"
	"telewatch/internal/transport"
	logx "telewatch/pkg/logx"
)

// relayNotifier forwards the original platform message to a configured
// chat. It deliberately does not retry: a duplicate forward is visible
// to end users, so the forward fails fast on first error.
type relayNotifier struct {
	fwd transport.Forwarder
	log logx.Logger
}

func (n *relayNotifier) Channel() Channel { return ChannelRelay }

func (n *relayNotifier) Enabled(snap *config.Snapshot) bool {
	return snap.Destinations.Relay.Enabled
}

func (n *relayNotifier) Configured(snap *config.Snapshot) bool {
	return snap.Destinations.Relay.ChatID != 0
}

func (n *relayNotifier) DisplayStatus(snap *config.Snapshot) string {
	d := snap.Destinations.Relay
	if !d.Enabled {
		return "(disabled)"
	}
	if d.ChatID == 0 {
		return "(no chat selected)"
	}
	return "chat " + strconv.FormatInt(d.ChatID, 10)
}

func (n *relayNotifier) Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome {
	target := snap.Destinations.Relay.ChatID
	if target == 0 {
		n.log.Error("relay chat not configured")
		return failure(ChannelRelay, 1, "no relay chat configured")
	}
	if n.fwd == nil {
		n.log.Error("relay transport unavailable")
		return failure(ChannelRelay, 1, "relay transport unavailable")
	}
	if req.Origin.MessageID == 0 {
		n.log.Error("relay request missing original message reference")
		return failure(ChannelRelay, 1, "no original message to forward")
	}

	err := n.fwd.Forward(ctx, req.Origin, transport.ChatTarget{ChatID: target})
	if err != nil {
		n.log.Error("message forward failed", logx.Int64("chat_id", target), logx.Err(err))
		return failure(ChannelRelay, 1, err.Error())
	}
	n.log.Info("message forwarded", logx.Int64("chat_id", target))
	return success(ChannelRelay, 1)
}
