package notify

import (
	"context"
	"io"
	"net/http"
	"strings"

	"telewatch/internal/config"
	logx "telewatch/pkg/logx"
)

const defaultPushServer = "https://ntfy.sh"

// pushNotifier delivers over ntfy publish: an HTTP POST with the body
// as payload and the title in a header.
type pushNotifier struct {
	exec Executor
	http *http.Client
	log  logx.Logger
}

func (n *pushNotifier) Channel() Channel { return ChannelPush }

func (n *pushNotifier) Enabled(snap *config.Snapshot) bool {
	return snap.Destinations.Push.Enabled
}

func (n *pushNotifier) Configured(snap *config.Snapshot) bool {
	return strings.TrimSpace(snap.Destinations.Push.Topic) != ""
}

func (n *pushNotifier) DisplayStatus(snap *config.Snapshot) string {
	d := snap.Destinations.Push
	if !d.Enabled {
		return "(disabled)"
	}
	topic := strings.TrimSpace(d.Topic)
	if topic == "" {
		return "(no topic set)"
	}
	server := strings.TrimSpace(d.Server)
	if server == "" {
		return "ntfy.sh/" + topic
	}
	return strings.TrimSuffix(server, "/") + "/" + topic
}

func (n *pushNotifier) Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome {
	d := snap.Destinations.Push
	topic := strings.TrimSpace(d.Topic)
	if topic == "" {
		n.log.Error("push topic not configured")
		return failure(ChannelPush, 1, "no topic configured")
	}

	server := strings.TrimSpace(d.Server)
	if server == "" {
		server = defaultPushServer
	}
	url := strings.TrimSuffix(server, "/") + "/" + topic

	title := alertTitle(req.Source)
	body := pushBody(req)

	attempts, ok := n.exec.Run(ctx, string(ChannelPush), func(actx context.Context) error {
		return n.post(actx, url, title, body)
	})
	if !ok {
		return failure(ChannelPush, attempts, "push delivery failed")
	}
	n.log.Info("push notification sent", logx.String("topic", topic))
	return success(ChannelPush, attempts)
}

func (n *pushNotifier) post(ctx context.Context, url, title, body string) error {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Title", title)

	resp, err := n.http.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return nil
}
