package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Interaction model related methods.
	CreateInteraction(ctx context.Context, create *Interaction) (*Interaction, error)
	ListInteractions(ctx context.Context, find *FindInteraction) ([]*Interaction, error)
	InvalidateInteraction(ctx context.Context, id string) error
	SearchInteractions(ctx context.Context, opts *InteractionSearchOptions) ([]*InteractionWithScore, error)
}
