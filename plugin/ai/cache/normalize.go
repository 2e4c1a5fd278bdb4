package cache

import (
	"strings"
	"unicode"
)

// Normalize folds case and whitespace so that trivially different spellings of
// the same question share one TTL entry. Trailing ?, ! and . are dropped.
func Normalize(query string) string {
	fields := strings.FieldsFunc(query, unicode.IsSpace)
	s := strings.ToLower(strings.Join(fields, " "))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '?' || r == '!' || r == '.' || unicode.IsSpace(r)
	})
}
