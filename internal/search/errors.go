package search

import "errors"

var (
	// ErrInvalidTenant means the tenant id is missing or not UUID-shaped.
	// Rejected before any query runs; row-level isolation is the second
	// line of defense, not the first.
	ErrInvalidTenant = errors.New("invalid tenant id")

	// ErrUnknownFilterColumn means a filter referenced a column outside
	// the schema descriptor's allow-list.
	ErrUnknownFilterColumn = errors.New("unknown filter column")

	// ErrEmbedder wraps failures of the external embedding collaborator.
	// Callers may fall back to filter-only search.
	ErrEmbedder = errors.New("embedder failure")
)
