// Package cache provides the exact-match answer cache in front of the
// similarity backend.
package cache

// AnswerCache is the fast path consulted before any backend or LLM call.
type AnswerCache interface {
	// Put stores answer under (userID, normalizedQuery) and resets its timestamp.
	Put(userID, normalizedQuery, answer, interactionID string)

	// Get returns a live entry. Expired entries are treated as absent.
	Get(userID, normalizedQuery string) (Entry, bool)

	// Delete removes an entry and returns it, expired or not.
	Delete(userID, normalizedQuery string) (Entry, bool)
}

var (
	_ AnswerCache = (*TTLStore)(nil)
	_ AnswerCache = (*Service)(nil)
)
