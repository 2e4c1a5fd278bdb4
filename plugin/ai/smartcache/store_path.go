package smartcache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/observability"
	"github.com/hrygo/smartcache/plugin/ai/cache"
	"github.com/hrygo/smartcache/plugin/ai/timeout"
	"github.com/hrygo/smartcache/store"
)

// StoreInteractionAutoCat categorizes the interaction, indexes it in the
// similarity backend and caches the answer under the literal query.
//
// Categorization never blocks storage. When indexing fails the answer is
// still cached and a SERVICE_UNAVAILABLE error is returned together with the
// unindexed interaction.
func (s *Service) StoreInteractionAutoCat(ctx context.Context, userID, query, answer string) (*store.Interaction, error) {
	reqCtx, ok := observability.FromContext(ctx)
	if !ok {
		reqCtx = observability.NewRequestContext(s.logger, "store_interaction", userID)
	}

	if err := validateQuestion(userID, query); err != nil {
		return nil, err
	}
	if strings.TrimSpace(answer) == "" {
		return nil, errors.InvalidArgument("answer is required")
	}
	normalized := cache.Normalize(query)

	catCtx, cancel := context.WithTimeout(ctx, timeout.CategorizeTimeout)
	label, _ := s.categorizer.Categorize(catCtx, query+"\n"+answer)
	cancel()

	interaction := &store.Interaction{
		UserID:          userID,
		Query:           query,
		NormalizedQuery: normalized,
		Answer:          answer,
		Category:        label,
	}

	addCtx, cancel := context.WithTimeout(ctx, timeout.BackendWriteTimeout)
	stored, err := s.backend.Add(addCtx, interaction)
	cancel()
	if err != nil {
		s.cache.Put(userID, normalized, answer, "")
		s.metrics.RecordError(ctx, string(errors.ErrCodeServiceUnavailable))
		reqCtx.Warn("similarity backend rejected interaction, cached only",
			slog.String("error", err.Error()),
		)
		return interaction, errors.ServiceUnavailable("failed to index interaction", err)
	}

	s.cache.Put(userID, normalized, answer, stored.ID)
	reqCtx.Debug("interaction stored",
		slog.String("interaction_id", stored.ID),
		slog.String("query", timeout.Truncate(query)),
		slog.String("category", stored.Category),
	)
	return stored, nil
}
