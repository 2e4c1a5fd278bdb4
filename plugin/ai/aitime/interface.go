// Package aitime detects and resolves relative time expressions in questions.
// Answers to such questions go stale with the clock, so they must not be
// served from a similar question asked at another time.
package aitime

import "time"

// TimeSensitivity is consumed by the decision engine to gate semantic reuse.
type TimeSensitivity interface {
	// IsTimeSensitive reports whether the text depends on when it is asked.
	IsTimeSensitive(text string) bool

	// Resolve maps the first relative expression in text to a concrete range
	// relative to ref. ok is false when the text has no such expression.
	Resolve(text string, ref time.Time) (tr TimeRange, ok bool)
}

// TimeRange represents a time range.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
