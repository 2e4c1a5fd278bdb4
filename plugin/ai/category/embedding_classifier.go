package category

import (
	"context"
	"fmt"
	"sync"

	"github.com/hrygo/smartcache/plugin/ai/vector"
	"github.com/hrygo/smartcache/store"
)

// DefaultMinScore is the similarity below which no label is assigned.
const DefaultMinScore = 0.1

// EmbeddingClassifier picks the label whose description embedding is most
// similar to the text embedding.
type EmbeddingClassifier struct {
	embedder     vector.Embedder
	labels       []string
	descriptions map[string]string
	minScore     float64

	mu        sync.Mutex
	labelVecs map[string][]float32
}

// NewEmbeddingClassifier creates a classifier. Labels missing from
// descriptions are embedded by name.
func NewEmbeddingClassifier(embedder vector.Embedder, labels []string, descriptions map[string]string) *EmbeddingClassifier {
	return &EmbeddingClassifier{
		embedder:     embedder,
		labels:       labels,
		descriptions: descriptions,
		minScore:     DefaultMinScore,
	}
}

// Categorize returns the best label, or Uncategorized when nothing clears minScore.
// Ties go to the label listed first.
func (c *EmbeddingClassifier) Categorize(ctx context.Context, text string) (string, error) {
	labelVecs, err := c.labelVectors(ctx)
	if err != nil {
		return "", err
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed text: %w", err)
	}

	best, bestScore := Uncategorized, c.minScore
	for _, label := range c.labels {
		if score := store.CosineSimilarity(vec, labelVecs[label]); score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, nil
}

// labelVectors embeds every label once. A failure is retried on the next call.
func (c *EmbeddingClassifier) labelVectors(ctx context.Context) (map[string][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.labelVecs != nil {
		return c.labelVecs, nil
	}

	vecs := make(map[string][]float32, len(c.labels))
	for _, label := range c.labels {
		text := label
		if d, ok := c.descriptions[label]; ok && d != "" {
			text = d
		}
		v, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed label %q: %w", label, err)
		}
		vecs[label] = v
	}
	c.labelVecs = vecs
	return vecs, nil
}
