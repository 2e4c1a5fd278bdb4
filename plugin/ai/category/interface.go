// Package category assigns a label from a fixed set to stored interactions
// by zero-shot classification.
package category

import "context"

// Uncategorized is assigned whenever classification fails or is not confident.
const Uncategorized = "uncategorized"

// Categorizer assigns a label to a piece of text.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (string, error)
}

// Mode selects the categorizer variant.
const (
	ModeLLM       = "llm"
	ModeEmbedding = "embedding"
	ModeNone      = "none"
)

// DefaultLabelDescriptions gives each default label a short gloss. The
// embedding classifier compares against the gloss rather than the bare label.
var DefaultLabelDescriptions = map[string]string{
	"personal":    "personal name family friends age birthday introduce myself who am i",
	"preferences": "prefer preference like dislike favorite favourite love hate want rather",
	"hobbies":     "hobby hobbies fun sport play game cricket football tennis music reading weekend leisure",
	"work":        "work job career office meeting project colleague boss salary deadline",
	"technology":  "technology software code programming computer app internet phone ai",
	"health":      "health doctor sick medicine exercise diet sleep fitness pain",
	"travel":      "travel trip flight hotel vacation holiday visit country city",
	"food":        "food eat cook recipe restaurant dinner lunch breakfast meal drink",
}

func labelSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}
