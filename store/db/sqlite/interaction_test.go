package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "smartcache_test.db"),
	}
	driver, err := NewDB(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestInteractionStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateInteraction(ctx, &store.Interaction{
		ID:              "ix-1",
		UserID:          "alice",
		Query:           "Hi, I'm Alex. I like cricket on weekends.",
		NormalizedQuery: "hi, i'm alex. i like cricket on weekends",
		Answer:          "Hello Alex!",
		Category:        "hobbies",
		Embedding:       []float32{1, 0, 0},
		EmbeddingModel:  "test",
		CreatedTs:       1000,
	})
	require.NoError(t, err)

	_, err = s.CreateInteraction(ctx, &store.Interaction{
		ID:             "ix-2",
		UserID:         "alice",
		Query:          "I work as a nurse",
		Answer:         "Noted",
		Category:       "work",
		Embedding:      []float32{0.6, 0.8, 0},
		EmbeddingModel: "test",
		CreatedTs:      2000,
	})
	require.NoError(t, err)

	_, err = s.CreateInteraction(ctx, &store.Interaction{
		ID:             "ix-3",
		UserID:         "bob",
		Query:          "cricket",
		Answer:         "bat",
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: "test",
		CreatedTs:      3000,
	})
	require.NoError(t, err)

	t.Run("GetInteraction", func(t *testing.T) {
		got, err := s.GetInteraction(ctx, "ix-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "hobbies", got.Category)
		assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
		assert.False(t, got.Invalidated)

		missing, err := s.GetInteraction(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		user := "alice"
		list, err := s.ListInteractions(ctx, &store.FindInteraction{UserID: &user})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ix-2", list[0].ID)
	})

	t.Run("SearchRanksByCosine", func(t *testing.T) {
		results, err := s.SearchInteractions(ctx, &store.InteractionSearchOptions{
			UserID: "alice",
			Vector: []float32{1, 0, 0},
			Model:  "test",
			Limit:  5,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "ix-1", results[0].Interaction.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.InDelta(t, 0.6, results[1].Score, 1e-6)
	})

	t.Run("SearchSkipsOtherModels", func(t *testing.T) {
		results, err := s.SearchInteractions(ctx, &store.InteractionSearchOptions{
			UserID: "alice",
			Vector: []float32{1, 0, 0},
			Model:  "other",
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("InvalidateExcludesFromSearch", func(t *testing.T) {
		require.NoError(t, s.InvalidateInteraction(ctx, "ix-1"))
		// idempotent
		require.NoError(t, s.InvalidateInteraction(ctx, "ix-1"))

		results, err := s.SearchInteractions(ctx, &store.InteractionSearchOptions{
			UserID: "alice",
			Vector: []float32{1, 0, 0},
			Model:  "test",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "ix-2", results[0].Interaction.ID)

		// the row is kept for audit
		got, err := s.GetInteraction(ctx, "ix-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Invalidated)
	})
}

func TestInteractionStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i, q := range []string{"first question", "second question", "third question", "fourth question"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, err := s.CreateInteraction(ctx, &store.Interaction{
				ID:        q,
				UserID:    "alice",
				Query:     q,
				Answer:    "a",
				CreatedTs: int64(i),
			})
			assert.NoError(t, err)
		}(i, q)
	}
	wg.Wait()

	user := "alice"
	list, err := s.ListInteractions(ctx, &store.FindInteraction{UserID: &user})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
