package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/storeloom/searchcore/internal/database"
	"github.com/storeloom/searchcore/internal/models"
)

// Service resolves tenants. The tenants table is not row-level-secured, so
// lookups run without a tenant context.
type Service struct {
	pool *database.Pool
}

func NewService(pool *database.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.RunRead(ctx, "", func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			"SELECT id, name, slug, created_at, updated_at FROM tenants WHERE id = $1", id,
		).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}
