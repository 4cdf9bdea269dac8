package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"telewatch/internal/config"
	logx "telewatch/pkg/logx"
)

// webhookNotifier posts a Discord-compatible embed payload to the
// configured webhook URL.
type webhookNotifier struct {
	exec Executor
	http *http.Client
	log  logx.Logger
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []webhookEmbedField `json:"fields"`
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

func (n *webhookNotifier) Channel() Channel { return ChannelWebhook }

func (n *webhookNotifier) Enabled(snap *config.Snapshot) bool {
	return snap.Destinations.Webhook.Enabled
}

func (n *webhookNotifier) Configured(snap *config.Snapshot) bool {
	return strings.TrimSpace(snap.Destinations.Webhook.URL) != ""
}

func (n *webhookNotifier) DisplayStatus(snap *config.Snapshot) string {
	d := snap.Destinations.Webhook
	if !d.Enabled {
		return "(disabled)"
	}
	url := strings.TrimSpace(d.URL)
	if url == "" {
		return "(no webhook URL)"
	}
	// Show only the tail; the full URL is a secret.
	if len(url) > 25 {
		url = url[len(url)-25:]
	}
	return "..." + url
}

func (n *webhookNotifier) Send(ctx context.Context, req Request, snap *config.Snapshot) Outcome {
	url := strings.TrimSpace(snap.Destinations.Webhook.URL)
	if url == "" {
		n.log.Error("webhook URL not configured")
		return failure(ChannelWebhook, 1, "no webhook URL configured")
	}

	payload := webhookPayload{Embeds: []webhookEmbed{{
		Title:       alertTitle(req.Source),
		Description: truncate(req.Text, webhookDescriptionLimit),
		Color:       webhookEmbedColor,
		Fields: []webhookEmbedField{
			{Name: "Keywords", Value: keywordList(req.Keywords), Inline: true},
		},
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("webhook payload encode failed", logx.Err(err))
		return failure(ChannelWebhook, 1, "payload encode failed: "+err.Error())
	}

	attempts, ok := n.exec.Run(ctx, string(ChannelWebhook), func(actx context.Context) error {
		return n.post(actx, url, body)
	})
	if !ok {
		return failure(ChannelWebhook, attempts, "webhook delivery failed")
	}
	n.log.Info("webhook notification sent")
	return success(ChannelWebhook, attempts)
}

func (n *webhookNotifier) post(ctx context.Context, url string, body []byte) error {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("User-Agent", "TeleWatch/1.0")

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
