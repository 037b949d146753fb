package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a read-only view of a catalog row. Ingestion owns the write
// side; the embedding column is populated asynchronously after ingestion, so
// a product may exist without one.
type Product struct {
	ID          int64               `json:"id"`
	TenantID    uuid.UUID           `json:"tenant_id"`
	Title       string              `json:"title"`
	Vendor      string              `json:"vendor"`
	ProductType string              `json:"product_type"`
	MinPrice    float64             `json:"min_price"`
	MaxPrice    float64             `json:"max_price"`
	HasDiscount bool                `json:"has_discount"`
	Tags        []string            `json:"tags,omitempty"`
	Options     map[string][]string `json:"options,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// SimilarityScore is set only when the product came out of a semantic
	// search; it is in [0,1], higher is better.
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// MatchReason is set by the result refiner when one ran.
	MatchReason string `json:"match_reason,omitempty"`
}
