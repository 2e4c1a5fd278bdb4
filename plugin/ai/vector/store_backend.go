package vector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/store"
)

// StoreBackend persists interactions through store.Store, so the index
// survives restarts when the driver is SQLite or PostgreSQL.
type StoreBackend struct {
	store    *store.Store
	embedder Embedder
	now      func() time.Time
}

var _ Backend = (*StoreBackend)(nil)

// NewStoreBackend creates a backend over a migrated store.
func NewStoreBackend(s *store.Store, embedder Embedder) *StoreBackend {
	return &StoreBackend{
		store:    s,
		embedder: embedder,
		now:      time.Now,
	}
}

func (b *StoreBackend) Add(ctx context.Context, interaction *store.Interaction) (*store.Interaction, error) {
	vec, err := b.embedder.Embed(ctx, interaction.Query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed interaction")
	}

	create := *interaction
	create.Embedding = vec
	create.EmbeddingModel = b.embedder.Model()
	prepare(&create, b.now)

	return b.store.CreateInteraction(ctx, &create)
}

func (b *StoreBackend) Search(ctx context.Context, userID, query string, topK int) ([]Match, error) {
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}

	results, err := b.store.SearchInteractions(ctx, &store.InteractionSearchOptions{
		UserID: userID,
		Vector: vec,
		Model:  b.embedder.Model(),
		Limit:  topK,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Interaction: r.Interaction,
			Score:       clampScore(float64(r.Score)),
		})
	}
	sortMatches(matches)
	return matches, nil
}

func (b *StoreBackend) Invalidate(ctx context.Context, id string) error {
	return b.store.InvalidateInteraction(ctx, id)
}
