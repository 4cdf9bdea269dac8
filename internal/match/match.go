// Package match implements case-insensitive keyword scanning over
// message text.
package match

import "strings"

// Keywords returns the configured keywords found in text as
// case-insensitive substrings, in configuration order. Empty keywords
// are ignored. The returned slice is nil when nothing matches.
func Keywords(text string, keywords []string) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range keywords {
		k := strings.TrimSpace(kw)
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			hits = append(hits, kw)
		}
	}
	return hits
}
