package models

import (
	"strings"
	"testing"
	"time"
)

func TestTruncateBrief(t *testing.T) {
	cases := []struct {
		name  string
		brief string
		want  string
	}{
		{"empty", "", ""},
		{"short", "build a landing page", "build a landing page"},
		{"exactly at limit", strings.Repeat("a", 250), strings.Repeat("a", 250)},
		{"one over limit", strings.Repeat("a", 251), strings.Repeat("a", 250) + "..."},
		{"multibyte runes", strings.Repeat("é", 300), strings.Repeat("é", 250) + "..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateBrief(tc.brief)
			if got != tc.want {
				t.Fatalf("TruncateBrief(%d chars) = %d chars, want %d", len(tc.brief), len(got), len(tc.want))
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, loc)

	sub := TaskSubmission{
		Task:   "markdown-to-html-abc12",
		Email:  "student@example.com",
		Round:  2,
		Brief:  strings.Repeat("x", 300),
		Secret: "shh",
	}

	got := Summarize(sub, now)
	if got.Task != sub.Task || got.Email != sub.Email || got.Round != sub.Round {
		t.Fatalf("summary identity mismatch: %+v", got)
	}
	if len(got.Brief) != 253 {
		t.Fatalf("expected truncated brief of 253 chars, got %d", len(got.Brief))
	}
	if got.Received.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %s", got.Received.Location())
	}
	if !got.Received.Equal(now) {
		t.Fatalf("timestamp changed instant: %s vs %s", got.Received, now)
	}
}
