package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloom/searchcore/internal/models"
	"github.com/storeloom/searchcore/internal/tenant"
)

const testSecret = "test-secret"

type fakeTenants struct {
	tenants map[uuid.UUID]*models.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, errors.New("tenant not found")
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTMiddleware(t *testing.T) {
	tenantID := uuid.New()
	tenants := &fakeTenants{tenants: map[uuid.UUID]*models.Tenant{
		tenantID: {ID: tenantID, Slug: "acme"},
	}}
	mw := NewJWTMiddleware(testSecret, tenants)

	var seenTenant *models.Tenant
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTenant = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	validClaims := func() Claims {
		return Claims{
			Sub:      "user-1",
			TenantID: tenantID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	do := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid token installs tenant context", func(t *testing.T) {
		seenTenant = nil
		rec := do("Bearer " + signToken(t, testSecret, validClaims()))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seenTenant)
		assert.Equal(t, tenantID, seenTenant.ID)
		assert.Equal(t, "acme", seenTenant.Slug)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := do("")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing authorization token")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec := do("Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := do("Bearer " + signToken(t, "other-secret", validClaims()))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

		rec := do("Bearer " + signToken(t, testSecret, claims))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed tenant claim", func(t *testing.T) {
		claims := validClaims()
		claims.TenantID = "not-a-uuid"

		rec := do("Bearer " + signToken(t, testSecret, claims))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid tenant ID")
	})

	t.Run("unknown tenant", func(t *testing.T) {
		claims := validClaims()
		claims.TenantID = uuid.NewString()

		rec := do("Bearer " + signToken(t, testSecret, claims))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "tenant not found")
	})
}
