package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/store"
)

func (d *DB) CreateInteraction(ctx context.Context, create *store.Interaction) (*store.Interaction, error) {
	fields := []string{"id", "user_id", "query", "normalized_query", "answer", "category", "embedding", "embedding_model", "invalidated", "created_ts"}
	args := []any{
		create.ID,
		create.UserID,
		create.Query,
		create.NormalizedQuery,
		create.Answer,
		create.Category,
		encodeFloat32s(create.Embedding),
		create.EmbeddingModel,
		create.Invalidated,
		create.CreatedTs,
	}

	stmt := "INSERT INTO interaction (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ")"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create interaction")
	}
	return create, nil
}

func (d *DB) ListInteractions(ctx context.Context, find *store.FindInteraction) ([]*store.Interaction, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if !find.IncludeInvalidated {
		where = append(where, "invalidated = 0")
	}

	query := `
		SELECT id, user_id, query, normalized_query, answer, category, embedding, embedding_model, invalidated, created_ts
		FROM interaction
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id ASC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interactions")
	}
	defer rows.Close()

	list := []*store.Interaction{}
	for rows.Next() {
		var interaction store.Interaction
		var blob []byte
		if err := rows.Scan(
			&interaction.ID,
			&interaction.UserID,
			&interaction.Query,
			&interaction.NormalizedQuery,
			&interaction.Answer,
			&interaction.Category,
			&blob,
			&interaction.EmbeddingModel,
			&interaction.Invalidated,
			&interaction.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan interaction")
		}
		interaction.Embedding = decodeFloat32s(blob)
		list = append(list, &interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) InvalidateInteraction(ctx context.Context, id string) error {
	stmt := "UPDATE interaction SET invalidated = 1 WHERE id = " + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, id); err != nil {
		return errors.Wrap(err, "failed to invalidate interaction")
	}
	return nil
}

// SearchInteractions ranks the user's live interactions by brute-force cosine similarity.
func (d *DB) SearchInteractions(ctx context.Context, opts *store.InteractionSearchOptions) ([]*store.InteractionWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	userID := opts.UserID
	candidates, err := d.ListInteractions(ctx, &store.FindInteraction{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load interactions for search")
	}

	results := []*store.InteractionWithScore{}
	for _, interaction := range candidates {
		if opts.Model != "" && interaction.EmbeddingModel != opts.Model {
			continue
		}
		if len(interaction.Embedding) != len(opts.Vector) {
			continue
		}
		score := store.CosineSimilarity(opts.Vector, interaction.Embedding)
		if score < 0 {
			score = 0
		}
		results = append(results, &store.InteractionWithScore{
			Interaction: interaction,
			Score:       float32(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Interaction.CreatedTs > results[j].Interaction.CreatedTs
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
