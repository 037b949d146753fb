package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/storeloom/searchcore/internal/models"
)

type contextKey string

const tenantKey contextKey = "tenant"

func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func FromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if t := FromContext(ctx); t != nil {
		return t.ID
	}
	return uuid.Nil
}
