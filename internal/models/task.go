package models

import (
	"time"
	"unicode/utf8"
)

// briefLimit caps how much of the brief is kept on the status summary.
const briefLimit = 250

// Attachment is a named artifact referenced by a task submission. URL is
// either an http(s) link or a data: URI carrying the bytes inline.
type Attachment struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// TaskSubmission is the payload accepted on POST /ready.
type TaskSubmission struct {
	Task          string       `json:"task" validate:"required"`
	Email         string       `json:"email" validate:"required"`
	Round         int          `json:"round"`
	Brief         string       `json:"brief"`
	EvaluationURL string       `json:"evaluation_url"`
	Nonce         string       `json:"nonce"`
	Secret        string       `json:"secret"`
	Attachments   []Attachment `json:"attachments" validate:"dive"`
}

// TaskSummary is the redacted view of the most recent admitted submission
// served by GET /status. The secret is never copied into it.
type TaskSummary struct {
	Task     string    `json:"task"`
	Email    string    `json:"email"`
	Round    int       `json:"round"`
	Brief    string    `json:"brief"`
	Received time.Time `json:"time"`
}

// Summarize builds the status summary for an admitted submission, trimming
// long briefs and stamping the admission time in UTC.
func Summarize(sub TaskSubmission, now time.Time) TaskSummary {
	return TaskSummary{
		Task:     sub.Task,
		Email:    sub.Email,
		Round:    sub.Round,
		Brief:    TruncateBrief(sub.Brief),
		Received: now.UTC(),
	}
}

// TruncateBrief keeps the first 250 characters of a brief and marks the cut
// with an ellipsis. Shorter briefs pass through untouched.
func TruncateBrief(brief string) string {
	if utf8.RuneCountInString(brief) <= briefLimit {
		return brief
	}
	return string([]rune(brief)[:briefLimit]) + "..."
}
