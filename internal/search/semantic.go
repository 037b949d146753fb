package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/storeloom/searchcore/internal/database"
)

// Candidate is one semantic search hit.
type Candidate struct {
	ProductID  int64
	Similarity float64
}

// Embedder is the external query-embedding collaborator.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type SemanticOptions struct {
	// MinSimilarity drops candidates scoring below it. Zero keeps
	// everything; that is the default.
	MinSimilarity float64
}

// SemanticSearch ranks a tenant's products by vector similarity to a query,
// optionally restricted to a candidate ID scope. Products without an
// embedding are invisible here.
type SemanticSearch struct {
	pool     *database.Pool
	embedder Embedder
	opts     SemanticOptions
}

func NewSemanticSearch(pool *database.Pool, embedder Embedder, opts SemanticOptions) *SemanticSearch {
	return &SemanticSearch{pool: pool, embedder: embedder, opts: opts}
}

func (s *SemanticSearch) Search(ctx context.Context, tenantID, query string, limit int, scope []int64) ([]Candidate, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrEmbedder, err)
	}

	sql, args := buildSemanticQuery(tenantID, vec, limit, scope)

	var candidates []Candidate
	err = s.pool.RunRead(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c Candidate
			if err := rows.Scan(&c.ProductID, &c.Similarity); err != nil {
				return fmt.Errorf("scan candidate: %w", err)
			}
			if s.opts.MinSimilarity > 0 && c.Similarity < s.opts.MinSimilarity {
				continue
			}
			candidates = append(candidates, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// buildSemanticQuery orders by cosine distance so the ANN index is used,
// with recency as the tie breaker. similarity = 1 - distance, in [0,1] for
// normalized embeddings.
func buildSemanticQuery(tenantID string, vec []float32, limit int, scope []int64) (string, []any) {
	embedding := pgvector.NewVector(vec)
	args := []any{embedding, tenantID}

	where := "tenant_id = $2 AND embedding IS NOT NULL"
	if len(scope) > 0 {
		args = append(args, scope)
		where += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}

	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS similarity
FROM products
WHERE %s
ORDER BY embedding <=> $1, updated_at DESC, id DESC
LIMIT $%d`, where, len(args))

	return sql, args
}
