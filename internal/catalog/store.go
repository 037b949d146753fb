package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/storeloom/searchcore/internal/database"
	"github.com/storeloom/searchcore/internal/models"
)

// Store reads product records for one tenant. The write side of the catalog
// belongs to ingestion; the only mutation here is the asynchronously
// populated embedding column.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

// ProductsByIDs hydrates full product records for the given IDs, preserving
// the input order. IDs that do not exist, or belong to another tenant, are
// silently absent from the result.
func (s *Store) ProductsByIDs(ctx context.Context, tenantID string, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const q = `SELECT id, tenant_id, title, vendor, product_type, min_price, max_price,
       has_discount, tags, options, updated_at
FROM products
WHERE id = ANY($1) AND tenant_id = $2
ORDER BY array_position($1::bigint[], id)`

	var products []models.Product
	err := s.pool.RunRead(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, q, ids, tenantID)
		if err != nil {
			return fmt.Errorf("hydrate products: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.Product
			if err := rows.Scan(
				&p.ID, &p.TenantID, &p.Title, &p.Vendor, &p.ProductType,
				&p.MinPrice, &p.MaxPrice, &p.HasDiscount, &p.Tags, &p.Options,
				&p.UpdatedAt,
			); err != nil {
				return fmt.Errorf("scan product: %w", err)
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ProductTypes lists the tenant's distinct product types, sorted. The
// conversational layer uses these to ground filter extraction.
func (s *Store) ProductTypes(ctx context.Context, tenantID string) ([]string, error) {
	const q = `SELECT DISTINCT product_type
FROM products
WHERE tenant_id = $1 AND product_type <> ''
ORDER BY product_type ASC`

	var types []string
	err := s.pool.RunRead(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, q, tenantID)
		if err != nil {
			return fmt.Errorf("product types: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				return fmt.Errorf("scan product type: %w", err)
			}
			types = append(types, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return types, nil
}

// ProductsMissingEmbeddings returns products awaiting their embedding,
// oldest first, for the backfill worker.
func (s *Store) ProductsMissingEmbeddings(ctx context.Context, tenantID string, limit int) ([]models.Product, error) {
	const q = `SELECT id, tenant_id, title, vendor, product_type, min_price, max_price,
       has_discount, tags, options, updated_at
FROM products
WHERE tenant_id = $1 AND embedding IS NULL
ORDER BY updated_at ASC
LIMIT $2`

	var products []models.Product
	err := s.pool.RunRead(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, q, tenantID, limit)
		if err != nil {
			return fmt.Errorf("missing embeddings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p models.Product
			if err := rows.Scan(
				&p.ID, &p.TenantID, &p.Title, &p.Vendor, &p.ProductType,
				&p.MinPrice, &p.MaxPrice, &p.HasDiscount, &p.Tags, &p.Options,
				&p.UpdatedAt,
			); err != nil {
				return fmt.Errorf("scan product: %w", err)
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// SetEmbedding stores the computed embedding for one product.
func (s *Store) SetEmbedding(ctx context.Context, tenantID string, productID int64, vec []float32) error {
	return s.pool.RunWrite(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE products SET embedding = $1 WHERE id = $2 AND tenant_id = $3",
			pgvector.NewVector(vec), productID, tenantID,
		)
		if err != nil {
			return fmt.Errorf("set embedding: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("set embedding: product %d not found", productID)
		}
		return nil
	})
}

// EmbeddingText is the canonical text embedded for a product.
func EmbeddingText(p models.Product) string {
	parts := []string{p.Title}
	if p.ProductType != "" {
		parts = append(parts, p.ProductType)
	}
	if p.Vendor != "" {
		parts = append(parts, p.Vendor)
	}
	if len(p.Tags) > 0 {
		parts = append(parts, strings.Join(p.Tags, " "))
	}
	return strings.Join(parts, "\n")
}
