package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/store"
)

func (d *DB) CreateInteraction(ctx context.Context, create *store.Interaction) (*store.Interaction, error) {
	fields := []string{"id", "user_id", "query", "normalized_query", "answer", "category", "embedding", "embedding_model", "invalidated", "created_ts"}

	var embedding any
	if len(create.Embedding) > 0 {
		embedding = pgvector.NewVector(create.Embedding)
	}
	args := []any{
		create.ID,
		create.UserID,
		create.Query,
		create.NormalizedQuery,
		create.Answer,
		create.Category,
		embedding,
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
		where = append(where, "invalidated = FALSE")
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
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) InvalidateInteraction(ctx context.Context, id string) error {
	stmt := "UPDATE interaction SET invalidated = TRUE WHERE id = " + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, id); err != nil {
		return errors.Wrap(err, "failed to invalidate interaction")
	}
	return nil
}

// SearchInteractions performs vector similarity search using pgvector.
func (d *DB) SearchInteractions(ctx context.Context, opts *store.InteractionSearchOptions) ([]*store.InteractionWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	// ORDER BY distance ASC yields the most similar rows first.
	query := `
		SELECT id, user_id, query, normalized_query, answer, category, embedding, embedding_model, invalidated, created_ts,
			1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM interaction
		WHERE user_id = ` + placeholder(2) + `
			AND invalidated = FALSE
			AND embedding IS NOT NULL
			AND embedding_model = ` + placeholder(3) + `
		ORDER BY embedding <=> ` + placeholder(1) + ` ASC, created_ts DESC
		LIMIT ` + placeholder(4)

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.UserID, opts.Model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.InteractionWithScore{}
	for rows.Next() {
		var result store.InteractionWithScore
		interaction, err := scanInteraction(rows, &result.Score)
		if err != nil {
			return nil, err
		}
		if result.Score < 0 {
			result.Score = 0
		}
		result.Interaction = interaction
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func scanInteraction(rows *sql.Rows, extra ...any) (*store.Interaction, error) {
	var interaction store.Interaction
	var vector pgvector.Vector
	var hasVector sql.NullString

	dest := []any{
		&interaction.ID,
		&interaction.UserID,
		&interaction.Query,
		&interaction.NormalizedQuery,
		&interaction.Answer,
		&interaction.Category,
		&hasVector,
		&interaction.EmbeddingModel,
		&interaction.Invalidated,
		&interaction.CreatedTs,
	}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "failed to scan interaction")
	}

	if hasVector.Valid {
		if err := vector.Scan(hasVector.String); err != nil {
			return nil, errors.Wrap(err, "failed to parse embedding")
		}
		interaction.Embedding = vector.Slice()
	}
	return &interaction, nil
}
