// Package dispatch fans matched messages out to the enabled
// notification channels and keeps the session counters.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"telewatch/internal/config"
	"telewatch/internal/eventbus"
	"telewatch/internal/match"
	"telewatch/internal/notify"
	"telewatch/internal/storage"
	"telewatch/internal/transport"
	logx "telewatch/pkg/logx"
)

// Event types published on the bus.
const (
	EventMatched        = "dispatch.matched"
	EventSent           = "notify.sent"
	EventFailed         = "notify.failed"
	EventSessionSummary = "session.summary"
)

const (
	matchEchoLimit = 200
	auditTimeout   = 2 * time.Second
	drainTimeout   = 15 * time.Second
)

// clipEcho bounds the logged message excerpt, cutting on a rune boundary
// so a multi-byte character never ends up split in the log line.
func clipEcho(s string) string {
	if len(s) <= matchEchoLimit {
		return s
	}
	cut := matchEchoLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Summary is the final counter readout of one monitoring session.
type Summary struct {
	StartedAt time.Time
	EndedAt   time.Time

	MessagesSeen        uint64
	MatchesFound        uint64
	NotificationsSent   uint64
	NotificationsFailed uint64
}

// Option configures a Session.
type Option func(*Session)

func WithBus(bus eventbus.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

func WithStore(store storage.Store) Option {
	return func(s *Session) { s.store = store }
}

func WithLogger(log logx.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session owns the dispatch state for one monitoring run: an immutable
// config snapshot, the channel registry, and the counters. A config
// change takes effect by ending the session and starting a new one.
type Session struct {
	snap *config.Snapshot
	reg  *notify.Registry
	log  logx.Logger
	bus  eventbus.Bus

	store storage.Store // nil when storage is disabled

	startedAt time.Time

	// inflight tracks fanout goroutines so Finish can drain them.
	inflight sync.WaitGroup

	// mu guards the counters. Adapter branches from overlapping
	// dispatches report through here concurrently.
	mu      sync.Mutex
	seen    uint64
	matched uint64
	sent    uint64
	failed  uint64
}

func NewSession(snap *config.Snapshot, reg *notify.Registry, opts ...Option) *Session {
	s := &Session{
		snap:      snap,
		reg:       reg,
		log:       logx.Nop(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one inbound message. It counts the message, runs the
// keyword matcher, and, on a match, starts a concurrent fanout. Handle
// returns without waiting for delivery, so dispatches for successive
// messages overlap freely.
func (s *Session) Handle(ctx context.Context, ev transport.MessageEvent) {
	s.mu.Lock()
	s.seen++
	s.mu.Unlock()

	hits := match.Keywords(ev.Text, s.snap.Keywords)
	if len(hits) == 0 {
		return
	}

	s.mu.Lock()
	s.matched++
	s.mu.Unlock()

	s.log.Info("keyword match",
		logx.String("chat", ev.ChatName),
		logx.Any("keywords", hits),
		logx.String("text", clipEcho(ev.Text)))
	s.publish(EventMatched, map[string]any{
		"chat":     ev.ChatName,
		"keywords": hits,
	})

	req := notify.Request{
		Text:     ev.Text,
		Source:   ev.ChatName,
		Keywords: hits,
		Origin:   transport.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID},
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.fanout(ctx, req)
	}()
}

// fanout invokes every enabled channel concurrently and aggregates the
// outcomes once all branches finish. One slow or failing channel never
// delays the others: each runs on its own goroutine and reports its own
// Outcome.
func (s *Session) fanout(ctx context.Context, req notify.Request) {
	var branches []notify.Notifier
	for _, n := range s.reg.All() {
		if n.Enabled(s.snap) {
			branches = append(branches, n)
		}
	}
	if len(branches) == 0 {
		return
	}

	outcomes := make([]notify.Outcome, len(branches))
	var wg sync.WaitGroup
	for i, n := range branches {
		wg.Add(1)
		go func(i int, n notify.Notifier) {
			defer wg.Done()
			outcomes[i] = n.Send(ctx, req, s.snap)
		}(i, n)
	}
	wg.Wait()

	var sent, failed uint64
	for _, out := range outcomes {
		if out.Succeeded {
			sent++
			s.publish(EventSent, map[string]any{
				"channel":  string(out.Channel),
				"attempts": out.Attempts,
			})
		} else {
			failed++
			s.log.Error("notification failed",
				logx.String("channel", string(out.Channel)),
				logx.Int("attempts", out.Attempts),
				logx.String("reason", out.Err))
			s.publish(EventFailed, map[string]any{
				"channel":  string(out.Channel),
				"attempts": out.Attempts,
				"reason":   out.Err,
			})
		}
		s.audit(req, out)
	}

	s.mu.Lock()
	s.sent += sent
	s.failed += failed
	s.mu.Unlock()
}

// audit appends the delivery outcome to storage, best effort with a
// bounded timeout so a slow backend cannot stall aggregation.
func (s *Session) audit(req notify.Request, out notify.Outcome) {
	if s.store == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	err := s.store.AppendDelivery(actx, storage.DeliveryEntry{
		At:        time.Now(),
		Channel:   string(out.Channel),
		Source:    req.Source,
		Keywords:  strings.Join(req.Keywords, ", "),
		Succeeded: out.Succeeded,
		Attempts:  out.Attempts,
		Error:     out.Err,
	})
	if err != nil {
		s.log.Debug("delivery audit append failed", logx.Err(err))
	}
}

func (s *Session) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Counters returns the current counter values.
func (s *Session) Counters() (seen, matched, sent, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen, s.matched, s.sent, s.failed
}

// Finish drains in-flight fanouts (bounded by the shutdown window),
// logs and publishes the session summary, and appends it to storage.
func (s *Session) Finish(ctx context.Context) Summary {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	wait := drainTimeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < wait {
			wait = rem
		}
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		s.log.Warn("session ended with deliveries still in flight")
	case <-ctx.Done():
	}

	s.mu.Lock()
	sum := Summary{
		StartedAt:           s.startedAt,
		EndedAt:             time.Now(),
		MessagesSeen:        s.seen,
		MatchesFound:        s.matched,
		NotificationsSent:   s.sent,
		NotificationsFailed: s.failed,
	}
	s.mu.Unlock()

	fields := []logx.Field{
		logx.Uint64("messages_seen", sum.MessagesSeen),
		logx.Uint64("matches_found", sum.MatchesFound),
		logx.Uint64("notifications_sent", sum.NotificationsSent),
	}
	if sum.NotificationsFailed > 0 {
		fields = append(fields, logx.Uint64("notifications_failed", sum.NotificationsFailed))
	}
	s.log.Info("session summary", fields...)
	s.publish(EventSessionSummary, map[string]any{
		"messages_seen":        sum.MessagesSeen,
		"matches_found":        sum.MatchesFound,
		"notifications_sent":   sum.NotificationsSent,
		"notifications_failed": sum.NotificationsFailed,
	})

	if s.store != nil {
		actx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		err := s.store.AppendSummary(actx, storage.SummaryEntry{
			StartedAt: sum.StartedAt,
			EndedAt:   sum.EndedAt,
			Seen:      sum.MessagesSeen,
			Matched:   sum.MatchesFound,
			Sent:      sum.NotificationsSent,
			Failed:    sum.NotificationsFailed,
		})
		if err != nil {
			s.log.Debug("session summary append failed", logx.Err(err))
		}
	}

	return sum
}
