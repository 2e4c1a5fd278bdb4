// Package context assembles prior interactions into a token-bounded context
// block for LLM prompts.
package context

// DefaultMaxTokens is the context budget used when none is configured.
const DefaultMaxTokens = 1000

// tokenBudget is the allowance a single block may spend.
type tokenBudget struct {
	limit int
}

func newTokenBudget(limit int) tokenBudget {
	if limit < 0 {
		limit = 0
	}
	return tokenBudget{limit: limit}
}

// fits reports whether a block costing total tokens stays within the limit.
func (b tokenBudget) fits(total int) bool {
	return total <= b.limit
}
