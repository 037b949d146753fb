package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storeloom/searchcore/internal/models"
	"github.com/storeloom/searchcore/internal/tenant"
)

type Claims struct {
	Sub      string `json:"sub"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// TenantLookup resolves the tenant named in a token. A token whose tenant
// no longer exists is rejected.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type JWTMiddleware struct {
	secret  []byte
	tenants TenantLookup
}

func NewJWTMiddleware(secret string, tenants TenantLookup) *JWTMiddleware {
	return &JWTMiddleware{
		secret:  []byte(secret),
		tenants: tenants,
	}
}

func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid tenant ID in token")
			return
		}

		ctx := r.Context()

		t, err := m.tenants.GetByID(ctx, tenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "tenant not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithTenant(ctx, t)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
