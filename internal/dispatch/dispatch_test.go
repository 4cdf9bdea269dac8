package dispatch

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"telewatch/internal/config"
	"telewatch/internal/notify"
	"telewatch/internal/transport"
)

// fakeNotifier scripts one channel's behavior for orchestrator tests.
type fakeNotifier struct {
	channel notify.Channel
	enabled bool
	delay   time.Duration
	calls   atomic.Int64

	// outcomes is consumed one per Send; when exhausted, Send succeeds.
	outcomes chan notify.Outcome
}

func (f *fakeNotifier) Channel() notify.Channel { return f.channel }

func (f *fakeNotifier) Send(ctx context.Context, req notify.Request, snap *config.Snapshot) notify.Outcome {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	select {
	case out := <-f.outcomes:
		out.Channel = f.channel
		return out
	default:
		return notify.Outcome{Channel: f.channel, Succeeded: true, Attempts: 1}
	}
}

func (f *fakeNotifier) Enabled(*config.Snapshot) bool         { return f.enabled }
func (f *fakeNotifier) Configured(*config.Snapshot) bool      { return true }
func (f *fakeNotifier) DisplayStatus(*config.Snapshot) string { return "fake" }

func scripted(outs ...notify.Outcome) chan notify.Outcome {
	ch := make(chan notify.Outcome, len(outs))
	for _, o := range outs {
		ch <- o
	}
	return ch
}

func testSnapshot(keywords ...string) *config.Snapshot {
	return &config.Snapshot{Keywords: keywords}
}

func msg(text string) transport.MessageEvent {
	return transport.MessageEvent{MessageID: 1, ChatID: 42, ChatName: "Jobs", Text: text}
}

func waitIdle(t *testing.T, s *Session) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("fanout did not finish")
	}
}

func TestFanoutIsConcurrent(t *testing.T) {
	const branchDelay = 100 * time.Millisecond
	var fakes []notify.Notifier
	for _, ch := range []notify.Channel{notify.ChannelPush, notify.ChannelWebhook, notify.ChannelEmail} {
		fakes = append(fakes, &fakeNotifier{channel: ch, enabled: true, delay: branchDelay})
	}
	s := NewSession(testSnapshot("go"), notify.RegistryOf(fakes...))

	start := time.Now()
	s.Handle(context.Background(), msg("go developer wanted"))
	waitIdle(t, s)
	elapsed := time.Since(start)

	// Three 100ms branches in parallel should take ~max, not ~sum.
	if elapsed > 250*time.Millisecond {
		t.Fatalf("fanout took %v, expected ~%v (concurrent, not serial)", elapsed, branchDelay)
	}

	_, _, sent, failed := s.Counters()
	if sent != 3 || failed != 0 {
		t.Fatalf("sent=%d failed=%d, want 3/0", sent, failed)
	}
}

func TestSessionCounters(t *testing.T) {
	f := &fakeNotifier{
		channel: notify.ChannelPush,
		enabled: true,
		outcomes: scripted(
			notify.Outcome{Succeeded: true, Attempts: 1},
			notify.Outcome{Succeeded: true, Attempts: 2},
			notify.Outcome{Succeeded: false, Attempts: 3, Err: "timeout"},
		),
	}
	s := NewSession(testSnapshot("python"), notify.RegistryOf(f))

	ctx := context.Background()
	texts := []string{
		"python job here",
		"nothing relevant",
		"another python role",
		"still nothing",
		"PYTHON contract",
		"noise", "noise", "noise", "noise", "noise",
	}
	for _, text := range texts {
		s.Handle(ctx, msg(text))
	}
	waitIdle(t, s)

	seen, matched, sent, failed := s.Counters()
	if seen != 10 {
		t.Fatalf("messages_seen = %d, want 10", seen)
	}
	if matched != 3 {
		t.Fatalf("matches_found = %d, want 3", matched)
	}
	if sent != 2 {
		t.Fatalf("notifications_sent = %d, want 2", sent)
	}
	if failed != 1 {
		t.Fatalf("notifications_failed = %d, want 1", failed)
	}

	sum := s.Finish(ctx)
	if sum.MessagesSeen != 10 || sum.MatchesFound != 3 || sum.NotificationsSent != 2 || sum.NotificationsFailed != 1 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
}

func TestDisabledDestinationNeverInvoked(t *testing.T) {
	enabled := &fakeNotifier{channel: notify.ChannelPush, enabled: true}
	disabled := &fakeNotifier{channel: notify.ChannelSMS, enabled: false}
	s := NewSession(testSnapshot("go"), notify.RegistryOf(enabled, disabled))

	s.Handle(context.Background(), msg("go job"))
	waitIdle(t, s)

	if n := enabled.calls.Load(); n != 1 {
		t.Fatalf("enabled adapter calls = %d, want 1", n)
	}
	if n := disabled.calls.Load(); n != 0 {
		t.Fatalf("disabled adapter calls = %d, want 0", n)
	}
}

func TestNoMatchNoFanout(t *testing.T) {
	f := &fakeNotifier{channel: notify.ChannelPush, enabled: true}
	s := NewSession(testSnapshot("python"), notify.RegistryOf(f))

	s.Handle(context.Background(), msg("Good morning everyone"))
	waitIdle(t, s)

	seen, matched, _, _ := s.Counters()
	if seen != 1 || matched != 0 {
		t.Fatalf("seen=%d matched=%d, want 1/0", seen, matched)
	}
	if n := f.calls.Load(); n != 0 {
		t.Fatalf("adapter calls = %d, want 0", n)
	}
}

func TestHandleDoesNotBlockOnSlowDelivery(t *testing.T) {
	slow := &fakeNotifier{channel: notify.ChannelEmail, enabled: true, delay: time.Second}
	s := NewSession(testSnapshot("go"), notify.RegistryOf(slow))

	start := time.Now()
	s.Handle(context.Background(), msg("go job one"))
	s.Handle(context.Background(), msg("go job two"))
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("Handle blocked for %v on slow delivery", elapsed)
	}

	waitIdle(t, s)
	if n := slow.calls.Load(); n != 2 {
		t.Fatalf("adapter calls = %d, want 2 (overlapping dispatches)", n)
	}
}

func TestClipEcho(t *testing.T) {
	short := "go job posting"
	if got := clipEcho(short); got != short {
		t.Fatalf("clipEcho modified short text: %q", got)
	}

	long := strings.Repeat("x", matchEchoLimit+50)
	if got := clipEcho(long); len(got) != matchEchoLimit {
		t.Fatalf("clipEcho length = %d, want %d", len(got), matchEchoLimit)
	}

	// Multi-byte text: the cut must land on a rune boundary.
	wide := strings.Repeat("求人情報", 30)
	got := clipEcho(wide)
	if len(got) > matchEchoLimit {
		t.Fatalf("clipEcho length = %d exceeds limit", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("clipEcho split a rune: %q", got)
	}
}
