// Package timeout defines centralized timeout constants for cache operations.
package timeout

import "time"

// Timeout constants.
const (
	// LLMCallTimeout bounds a single LLM caller invocation when no timeout is configured.
	LLMCallTimeout = 60 * time.Second

	// BackendSearchTimeout bounds a similarity backend lookup. On expiry the
	// engine degrades to a cold LLM call.
	BackendSearchTimeout = 5 * time.Second

	// BackendWriteTimeout bounds persisting an interaction into the backend.
	BackendWriteTimeout = 10 * time.Second

	// CategorizeTimeout bounds zero-shot categorization at store time.
	CategorizeTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to MaxTruncateLength runes for logging.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxTruncateLength {
		return s
	}
	return string(r[:MaxTruncateLength]) + "..."
}
