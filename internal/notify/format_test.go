package notify

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAlertTitle(t *testing.T) {
	if got := alertTitle("Remote Jobs"); got != "Job Alert [Remote Jobs]" {
		t.Fatalf("alertTitle = %q", got)
	}
}

func TestPushBody(t *testing.T) {
	req := Request{Text: "hiring now", Source: "Jobs", Keywords: []string{"python", "remote"}}
	got := pushBody(req)
	want := "Keywords: python, remote\n\nhiring now"
	if got != want {
		t.Fatalf("pushBody = %q, want %q", got, want)
	}
}

func TestEmailSubject(t *testing.T) {
	req := Request{Source: "Jobs Board", Keywords: []string{"go", "remote"}}
	if got := emailSubject(req); got != "Job Alert: go, remote in Jobs Board" {
		t.Fatalf("emailSubject = %q", got)
	}
}

func TestEmailBodyFramesMessage(t *testing.T) {
	req := Request{Text: "the message", Source: "Jobs", Keywords: []string{"go"}}
	body := emailBody(req)
	rule := strings.Repeat("-", 40)
	if strings.Count(body, rule) != 2 {
		t.Fatalf("expected message framed by two rules:\n%s", body)
	}
	if !strings.Contains(body, "Source: Jobs") || !strings.Contains(body, "Matched Keywords: go") {
		t.Fatalf("missing header lines:\n%s", body)
	}
}

func TestSMSBodyTruncation(t *testing.T) {
	long := strings.Repeat("x", 1000)
	req := Request{Text: long, Source: "Jobs", Keywords: []string{"go"}}
	body := smsBody(req)
	if len(body) > smsBudget {
		t.Fatalf("sms body length %d exceeds budget %d", len(body), smsBudget)
	}
	if !strings.HasSuffix(body, "...") {
		t.Fatalf("expected ellipsis marker on truncated body, got %q", body[len(body)-10:])
	}

	short := Request{Text: "short", Source: "Jobs", Keywords: []string{"go"}}
	if got := smsBody(short); strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected ellipsis on short body: %q", got)
	}
}

func TestWebhookDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("y", webhookDescriptionLimit+100)
	if got := truncate(long, webhookDescriptionLimit); len(got) != webhookDescriptionLimit {
		t.Fatalf("truncate length = %d, want %d", len(got), webhookDescriptionLimit)
	}
	if got := truncate("short", webhookDescriptionLimit); got != "short" {
		t.Fatalf("truncate modified short string: %q", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a limit landing mid-rune must back up, not split.
	s := strings.Repeat("é", 10)
	for limit := 1; limit < len(s); limit++ {
		got := truncate(s, limit)
		if !utf8.ValidString(got) {
			t.Fatalf("limit %d: truncate produced invalid UTF-8: %q", limit, got)
		}
		if len(got) > limit {
			t.Fatalf("limit %d: length %d exceeds limit", limit, len(got))
		}
	}
}

func TestSMSBodyTruncationKeepsRunesWhole(t *testing.T) {
	req := Request{Text: strings.Repeat("日本語テスト", 100), Source: "Jobs", Keywords: []string{"go"}}
	body := smsBody(req)
	if len(body) > smsBudget {
		t.Fatalf("sms body length %d exceeds budget %d", len(body), smsBudget)
	}
	if !utf8.ValidString(body) {
		t.Fatalf("sms body contains a split rune: %q", body)
	}
	if !strings.HasSuffix(body, "...") {
		t.Fatalf("expected ellipsis marker, got %q", body[len(body)-10:])
	}
}
