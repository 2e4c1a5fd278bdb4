// Package vector provides the similarity backend that indexes interactions
// and retrieves semantically similar ones for a user.
package vector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/smartcache/store"
)

// Backend indexes interactions and retrieves similar ones.
type Backend interface {
	// Add embeds and indexes an interaction. Missing ID and CreatedTs are filled in.
	Add(ctx context.Context, interaction *store.Interaction) (*store.Interaction, error)

	// Search returns up to topK live interactions of userID, most similar first.
	// Scores are in [0, 1]; ties are ordered by most recent first.
	Search(ctx context.Context, userID, query string, topK int) ([]Match, error)

	// Invalidate excludes an interaction from future searches without deleting it.
	Invalidate(ctx context.Context, id string) error
}

// Embedder turns text into a vector. ai.EmbeddingService satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Match is a search result.
type Match struct {
	Interaction *store.Interaction `json:"interaction"`
	Score       float64            `json:"score"` // similarity score 0-1
}

// CreatedAt returns the interaction creation time.
func (m Match) CreatedAt() time.Time {
	return time.UnixMilli(m.Interaction.CreatedTs)
}

// prepare fills the identity fields the caller may leave empty.
func prepare(interaction *store.Interaction, now func() time.Time) {
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	if interaction.CreatedTs == 0 {
		interaction.CreatedTs = now().UnixMilli()
	}
}
