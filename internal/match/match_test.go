package match

import (
	"reflect"
	"testing"
)

func TestKeywords(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		keywords []string
		want     []string
	}{
		{
			name:     "multiple hits in config order",
			text:     "Looking for a remote Python developer",
			keywords: []string{"python", "remote"},
			want:     []string{"python", "remote"},
		},
		{
			name:     "case insensitive both ways",
			text:     "URGENT: need GOLANG contractor",
			keywords: []string{"golang", "Urgent"},
			want:     []string{"golang", "Urgent"},
		},
		{
			name:     "substring match inside a word",
			text:     "devops engineers wanted",
			keywords: []string{"dev"},
			want:     []string{"dev"},
		},
		{
			name:     "no hits",
			text:     "selling a used couch",
			keywords: []string{"python", "remote"},
			want:     nil,
		},
		{
			name:     "empty text",
			text:     "",
			keywords: []string{"python"},
			want:     nil,
		},
		{
			name:     "empty keyword list",
			text:     "anything at all",
			keywords: nil,
			want:     nil,
		},
		{
			name:     "blank keywords skipped",
			text:     "python role",
			keywords: []string{"", "  ", "python"},
			want:     []string{"python"},
		},
		{
			name:     "original casing preserved in result",
			text:     "hiring react devs",
			keywords: []string{"React"},
			want:     []string{"React"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Keywords(tc.text, tc.keywords)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Keywords(%q, %v) = %v, want %v", tc.text, tc.keywords, got, tc.want)
			}
		})
	}
}
