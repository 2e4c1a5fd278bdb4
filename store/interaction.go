package store

import "context"

// Interaction is a stored question/answer pair of one user.
type Interaction struct {
	ID              string
	UserID          string
	Query           string
	NormalizedQuery string
	Answer          string
	Category        string
	Embedding       []float32
	EmbeddingModel  string // Model identifier, e.g., "local-hash-256"
	Invalidated     bool   // soft-deleted by negative feedback, never returned by search
	CreatedTs       int64  // unix milliseconds
}

// FindInteraction is the find condition for interactions.
type FindInteraction struct {
	ID                 *string
	UserID             *string
	IncludeInvalidated bool
	Limit              int
}

// InteractionWithScore represents a vector search result with similarity score.
type InteractionWithScore struct {
	Interaction *Interaction
	Score       float32 // Similarity score (0-1, higher is more similar)
}

// InteractionSearchOptions represents the options for vector search.
type InteractionSearchOptions struct {
	UserID string    // Required, only search interactions of this user
	Vector []float32 // Query vector
	Model  string    // Only rows embedded by this model are comparable
	Limit  int       // Number of results to return, default 10
}

// CreateInteraction persists a new interaction.
func (s *Store) CreateInteraction(ctx context.Context, create *Interaction) (*Interaction, error) {
	return s.driver.CreateInteraction(ctx, create)
}

// ListInteractions lists interactions, newest first.
func (s *Store) ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error) {
	return s.driver.ListInteractions(ctx, find)
}

// GetInteraction returns a single interaction by id, or nil if it does not exist.
func (s *Store) GetInteraction(ctx context.Context, id string) (*Interaction, error) {
	list, err := s.driver.ListInteractions(ctx, &FindInteraction{
		ID:                 &id,
		IncludeInvalidated: true,
		Limit:              1,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// InvalidateInteraction marks an interaction as invalidated. Invalidating an
// already invalidated or unknown interaction is not an error.
func (s *Store) InvalidateInteraction(ctx context.Context, id string) error {
	return s.driver.InvalidateInteraction(ctx, id)
}

// SearchInteractions performs vector similarity search over live interactions.
func (s *Store) SearchInteractions(ctx context.Context, opts *InteractionSearchOptions) ([]*InteractionWithScore, error) {
	return s.driver.SearchInteractions(ctx, opts)
}
