package notify

import (
	"strings"
	"unicode/utf8"
)

const (
	// Discord caps an embed description at 4096 characters.
	webhookDescriptionLimit = 4096
	webhookEmbedColor       = 5814783

	// smsBudget keeps the SMS within roughly three segments.
	smsBudget = 400
)

func alertTitle(source string) string {
	return "Job Alert [" + source + "]"
}

func keywordList(keywords []string) string {
	return strings.Join(keywords, ", ")
}

func pushBody(req Request) string {
	return "Keywords: " + keywordList(req.Keywords) + "\n\n" + req.Text
}

func emailSubject(req Request) string {
	return "Job Alert: " + keywordList(req.Keywords) + " in " + req.Source
}

func emailBody(req Request) string {
	rule := strings.Repeat("-", 40)
	var b strings.Builder
	b.WriteString("Job Listing Alert\n\n")
	b.WriteString("Source: " + req.Source + "\n")
	b.WriteString("Matched Keywords: " + keywordList(req.Keywords) + "\n\n")
	b.WriteString("Message:\n")
	b.WriteString(rule + "\n")
	b.WriteString(req.Text + "\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("This alert was sent by your keyword monitor.\n")
	return b.String()
}

// smsBody truncates the message so header plus body stay within the
// budget, appending an ellipsis marker when it cuts.
func smsBody(req Request) string {
	header := alertTitle(req.Source) + "\n" +
		"Keywords: " + keywordList(req.Keywords) + "\n\n"
	remaining := smsBudget - len(header)
	if remaining <= 3 {
		return header
	}
	msg := req.Text
	if len(msg) > remaining {
		msg = truncate(msg, remaining-3) + "..."
	}
	return header + msg
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary
// so a multi-byte character is never split. limit <= 0 means no limit.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
