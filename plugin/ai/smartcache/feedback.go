package smartcache

import (
	"context"
	"log/slog"

	"github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/observability"
	"github.com/hrygo/smartcache/plugin/ai/cache"
	"github.com/hrygo/smartcache/plugin/ai/timeout"
)

// maxFeedbackRounds bounds repeated searches when more than TopK stored
// interactions match the rejected query.
const maxFeedbackRounds = 8

// UserFeedback records whether an answer helped. Positive feedback is a no-op.
//
// Negative feedback drops the TTL entry for the query, invalidates the
// interaction that entry came from, and invalidates every backend match that
// is a literal repeat of the query or scores at or above the reuse threshold,
// so the rejected answer cannot return through semantic reuse either.
// Invalidated interactions are kept for audit. Repeating the call is harmless.
func (s *Service) UserFeedback(ctx context.Context, userID, query string, helpful bool) error {
	reqCtx := observability.NewRequestContext(s.logger, "user_feedback", userID)
	if err := validateQuestion(userID, query); err != nil {
		return err
	}
	if helpful {
		reqCtx.Debug("positive feedback ignored")
		return nil
	}

	normalized := cache.Normalize(query)
	invalidated := 0

	if entry, ok := s.cache.Delete(userID, normalized); ok && entry.InteractionID != "" {
		if err := s.invalidate(ctx, entry.InteractionID); err != nil {
			return err
		}
		invalidated++
	}

	for round := 0; round < maxFeedbackRounds; round++ {
		searchCtx, cancel := context.WithTimeout(ctx, timeout.BackendSearchTimeout)
		matches, err := s.backend.Search(searchCtx, userID, query, s.cfg.TopK)
		cancel()
		if err != nil {
			return errors.ServiceUnavailable("similarity search failed during feedback", err)
		}

		hits := 0
		for _, m := range matches {
			if m.Interaction == nil || m.Interaction.Invalidated {
				continue
			}
			literal := m.Interaction.NormalizedQuery == normalized ||
				cache.Normalize(m.Interaction.Query) == normalized
			if !literal && m.Score < s.cfg.SimilarityThresholdReuse {
				continue
			}
			if err := s.invalidate(ctx, m.Interaction.ID); err != nil {
				return err
			}
			hits++
		}
		invalidated += hits

		// Invalidated matches drop out of the next search, so another round
		// is only useful when this one was full of hits.
		if hits == 0 || hits < len(matches) || len(matches) < s.cfg.TopK {
			break
		}
	}

	reqCtx.Info("negative feedback applied",
		slog.Int("invalidated", invalidated),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) error {
	writeCtx, cancel := context.WithTimeout(ctx, timeout.BackendWriteTimeout)
	defer cancel()
	if err := s.backend.Invalidate(writeCtx, id); err != nil {
		return errors.ServiceUnavailable("failed to invalidate interaction", err).WithContext("interaction_id", id)
	}
	return nil
}
