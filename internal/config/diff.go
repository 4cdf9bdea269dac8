package config

import (
	"reflect"
	"sort"
	"strings"

	logx "telewatch/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections, (2) safe
// structured attrs for logging (never includes secrets like tokens or webhook
// URLs), and (3) whether the running monitoring session must be restarted to
// pick the change up (chats, keywords, destinations, dispatch policy).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)
	restart := false

	// Telegram (never log token). The adapter is created per session, so
	// any change here requires a session restart.
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.send_rate_per_sec", newCfg.Telegram.SendRatePerSec),
			logx.Bool("telegram.token_changed", strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token)),
		)
		restart = true
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Chats, newCfg.Chats) {
		changed = append(changed, "chats")
		attrs = append(attrs, logx.Int("chats.count", len(newCfg.Chats)))
		restart = true
	}

	if !reflect.DeepEqual(oldCfg.Keywords, newCfg.Keywords) {
		changed = append(changed, "keywords")
		attrs = append(attrs, logx.Int("keywords.count", len(newCfg.Keywords)))
		restart = true
	}

	// Destinations (log enabled flags only; recipient lists and URLs stay out)
	if !reflect.DeepEqual(oldCfg.Destinations, newCfg.Destinations) {
		changed = append(changed, "destinations")
		attrs = append(attrs,
			logx.Bool("dest.relay", newCfg.Destinations.Relay.Enabled),
			logx.Bool("dest.push", newCfg.Destinations.Push.Enabled),
			logx.Bool("dest.webhook", newCfg.Destinations.Webhook.Enabled),
			logx.Bool("dest.email", newCfg.Destinations.Email.Enabled),
			logx.Bool("dest.sms", newCfg.Destinations.SMS.Enabled),
		)
		restart = true
	}

	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.max_attempts", newCfg.Dispatch.MaxAttempts),
			logx.String("dispatch.retry_base", strings.TrimSpace(newCfg.Dispatch.RetryBase)),
		)
		restart = true
	}

	if oldCfg.Health != newCfg.Health {
		changed = append(changed, "health")
		attrs = append(attrs, logx.Bool("health.enabled", newCfg.Health.Enabled))
	}

	// Storage (nil means disabled)
	var oDriver, nDriver string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	sort.Strings(changed)
	return changed, attrs, restart
}
