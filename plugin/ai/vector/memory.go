package vector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/store"
)

// MemoryBackend is an in-process Backend. It keeps every interaction,
// including invalidated ones, for the lifetime of the process.
type MemoryBackend struct {
	embedder Embedder
	now      func() time.Time

	mu     sync.RWMutex
	byUser map[string][]*store.Interaction
	byID   map[string]*store.Interaction
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an in-memory backend.
func NewMemoryBackend(embedder Embedder) *MemoryBackend {
	return &MemoryBackend{
		embedder: embedder,
		now:      time.Now,
		byUser:   make(map[string][]*store.Interaction),
		byID:     make(map[string]*store.Interaction),
	}
}

// WithClock sets the clock used for CreatedTs.
func (b *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	b.now = now
	return b
}

// Add embeds the query text and indexes the interaction.
func (b *MemoryBackend) Add(ctx context.Context, interaction *store.Interaction) (*store.Interaction, error) {
	vec, err := b.embedder.Embed(ctx, interaction.Query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed interaction")
	}

	stored := *interaction
	stored.Embedding = vec
	stored.EmbeddingModel = b.embedder.Model()
	prepare(&stored, b.now)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[stored.ID]; exists {
		return nil, errors.Errorf("interaction %s already exists", stored.ID)
	}
	b.byID[stored.ID] = &stored
	b.byUser[stored.UserID] = append(b.byUser[stored.UserID], &stored)

	out := stored
	return &out, nil
}

// Search ranks the user's live interactions by cosine similarity.
func (b *MemoryBackend) Search(ctx context.Context, userID, query string, topK int) ([]Match, error) {
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	model := b.embedder.Model()

	b.mu.RLock()
	var matches []Match
	for _, interaction := range b.byUser[userID] {
		if interaction.Invalidated || interaction.EmbeddingModel != model {
			continue
		}
		copied := *interaction
		matches = append(matches, Match{
			Interaction: &copied,
			Score:       clampScore(store.CosineSimilarity(vec, interaction.Embedding)),
		})
	}
	b.mu.RUnlock()

	sortMatches(matches)
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Invalidate marks the interaction as invalidated. Unknown ids are ignored.
func (b *MemoryBackend) Invalidate(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if interaction, ok := b.byID[id]; ok {
		interaction.Invalidated = true
	}
	return nil
}

// Get returns a copy of an interaction, invalidated or not.
func (b *MemoryBackend) Get(id string) (*store.Interaction, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	interaction, ok := b.byID[id]
	if !ok {
		return nil, false
	}
	copied := *interaction
	return &copied, true
}

// Len returns the number of interactions held, invalidated included.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// sortMatches orders by score descending, then most recent first.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Interaction.CreatedTs > matches[j].Interaction.CreatedTs
	})
}
