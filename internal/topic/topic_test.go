package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		name    string
		caption string
		want    []string
	}{
		{
			name:    "batch plus topic",
			caption: "Batch: X\nTopic: Home -> A -> B",
			want:    []string{"X", "A", "B"},
		},
		{
			name:    "topic only home",
			caption: "Topic: Home",
			want:    nil,
		},
		{
			name:    "no markers",
			caption: "just a plain caption",
			want:    nil,
		},
		{
			name:    "topic without leading home",
			caption: "Topic: Movies -> 2024",
			want:    []string{"Movies", "2024"},
		},
		{
			name:    "home as a non-leading folder is kept",
			caption: "Topic: Movies -> Home -> 2024",
			want:    []string{"Movies", "Home", "2024"},
		},
		{
			name:    "batch only",
			caption: "Batch: Season 1",
			want:    []string{"Season 1"},
		},
		{
			name:    "case insensitive markers and loose colon spacing",
			caption: "BATCH : X\ntopic:Home->A",
			want:    []string{"X", "A"},
		},
		{
			name:    "batch name comes first even when topic line precedes it",
			caption: "Topic: Home -> A\nBatch: X",
			want:    []string{"X", "A"},
		},
		{
			name:    "missing colon is not a marker",
			caption: "batch X\ntopic Home -> A",
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePath(tc.caption)
			assert.Equal(t, tc.want, got)
		})
	}
}
