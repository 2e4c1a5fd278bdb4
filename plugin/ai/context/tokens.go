package context

// TokenCounter returns the token cost of a piece of text.
type TokenCounter func(text string) int

// EstimateTokens estimates the token count for a string.
// CJK and other non-ASCII runes count as ~2 tokens, ASCII as ~4 chars per token.
func EstimateTokens(content string) int {
	if len(content) == 0 {
		return 0
	}

	wideCount := 0
	asciiCount := 0

	for _, r := range content {
		if r < 128 {
			asciiCount++
		} else {
			wideCount++
		}
	}

	tokens := wideCount*2 + (asciiCount+3)/4
	if tokens == 0 {
		tokens = 1
	}

	return tokens
}
