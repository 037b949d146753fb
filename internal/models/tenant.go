package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated store. Created and deleted by an external admin
// workflow; immutable here.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
