package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/storeloom/searchcore/internal/database"
)

// Filter is the closed set of structured predicates a caller can apply.
// Each field maps to a fixed column in the schema descriptor; how it
// compiles (equality, ANY, array overlap, ILIKE, jsonb containment) is
// decided by the column's declared kind.
type Filter struct {
	ProductType  string   `json:"product_type,omitempty"`
	ProductTypes []string `json:"product_types,omitempty"`
	Vendor       string   `json:"vendor,omitempty"`
	Vendors      []string `json:"vendors,omitempty"`

	// MinPrice and MaxPrice describe the requested price interval. A
	// product matches when its own [min_price, max_price] interval
	// overlaps it, hence the cross-field comparisons in the compiled SQL.
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`

	HasDiscount *bool `json:"has_discount,omitempty"`

	// TagsAny matches products whose tags array overlaps these values.
	TagsAny []string `json:"tags_any,omitempty"`

	// TagContains is a case-insensitive substring match over tags.
	TagContains string `json:"tag_contains,omitempty"`

	// Options matches option key -> any of the given values, e.g.
	// {"Color": ["Red", "Blue"]}.
	Options map[string][]string `json:"options,omitempty"`
}

// IsZero reports whether no predicate is set. An empty filter matches the
// whole tenant.
func (f Filter) IsZero() bool {
	return f.ProductType == "" &&
		len(f.ProductTypes) == 0 &&
		f.Vendor == "" &&
		len(f.Vendors) == 0 &&
		f.MinPrice == nil &&
		f.MaxPrice == nil &&
		f.HasDiscount == nil &&
		len(f.TagsAny) == 0 &&
		f.TagContains == "" &&
		len(f.Options) == 0
}

// FilterSearch turns a Filter into a bounded, tenant-scoped candidate ID
// list, newest first. Stateless given the pool.
type FilterSearch struct {
	pool *database.Pool
}

func NewFilterSearch(pool *database.Pool) *FilterSearch {
	return &FilterSearch{pool: pool}
}

func (s *FilterSearch) Search(ctx context.Context, tenantID string, f Filter, limit int) ([]int64, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	sql, args, err := buildFilterQuery(tenantID, f, limit)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = s.pool.RunRead(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("filter search: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan product id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func buildFilterQuery(tenantID string, f Filter, limit int) (string, []any, error) {
	b := newPredicateBuilder(ProductSchema())
	b.raw("tenant_id = %s", tenantID)

	if f.ProductType != "" {
		if err := b.equality("product_type", f.ProductType); err != nil {
			return "", nil, err
		}
	}
	if len(f.ProductTypes) > 0 {
		if err := b.anyOf("product_type", f.ProductTypes); err != nil {
			return "", nil, err
		}
	}
	if f.Vendor != "" {
		if err := b.equality("vendor", f.Vendor); err != nil {
			return "", nil, err
		}
	}
	if len(f.Vendors) > 0 {
		if err := b.anyOf("vendor", f.Vendors); err != nil {
			return "", nil, err
		}
	}

	// Interval overlap: the product's cheapest variant must not exceed the
	// requested max, and its priciest variant must reach the requested min.
	if f.MinPrice != nil {
		if err := b.atLeast("max_price", *f.MinPrice); err != nil {
			return "", nil, err
		}
	}
	if f.MaxPrice != nil {
		if err := b.atMost("min_price", *f.MaxPrice); err != nil {
			return "", nil, err
		}
	}

	if f.HasDiscount != nil {
		if err := b.equality("has_discount", *f.HasDiscount); err != nil {
			return "", nil, err
		}
	}
	if len(f.TagsAny) > 0 {
		if err := b.anyOf("tags", f.TagsAny); err != nil {
			return "", nil, err
		}
	}
	if f.TagContains != "" {
		if err := b.substring("tags", f.TagContains); err != nil {
			return "", nil, err
		}
	}
	if len(f.Options) > 0 {
		keys := make([]string, 0, len(f.Options))
		for k := range f.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := b.mapContains("options", k, f.Options[k]); err != nil {
				return "", nil, err
			}
		}
	}

	sql := fmt.Sprintf(
		"SELECT id FROM products WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %s",
		strings.Join(b.clauses, " AND "), b.bind(limit),
	)
	return sql, b.args, nil
}

// predicateBuilder accumulates parameterized WHERE clauses. Only column
// names validated against the schema descriptor reach the SQL text.
type predicateBuilder struct {
	schema  *Schema
	clauses []string
	args    []any
}

func newPredicateBuilder(schema *Schema) *predicateBuilder {
	return &predicateBuilder{schema: schema}
}

func (b *predicateBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *predicateBuilder) raw(format string, v any) {
	b.clauses = append(b.clauses, fmt.Sprintf(format, b.bind(v)))
}

func (b *predicateBuilder) column(name string, kinds ...ColumnKind) (Column, error) {
	col, ok := b.schema.Column(name)
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownFilterColumn, name)
	}
	for _, k := range kinds {
		if col.Kind == k {
			return col, nil
		}
	}
	return Column{}, fmt.Errorf("%w: %s does not support this filter kind", ErrUnknownFilterColumn, name)
}

func (b *predicateBuilder) equality(name string, v any) error {
	col, err := b.column(name, KindText, KindBool, KindNumeric)
	if err != nil {
		return err
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s = %s", col.Name, b.bind(v)))
	return nil
}

func (b *predicateBuilder) atLeast(name string, v float64) error {
	col, err := b.column(name, KindNumeric)
	if err != nil {
		return err
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s >= %s", col.Name, b.bind(v)))
	return nil
}

func (b *predicateBuilder) atMost(name string, v float64) error {
	col, err := b.column(name, KindNumeric)
	if err != nil {
		return err
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s <= %s", col.Name, b.bind(v)))
	return nil
}

// anyOf compiles to membership for scalar columns and overlap for array
// columns.
func (b *predicateBuilder) anyOf(name string, values []string) error {
	col, err := b.column(name, KindText, KindTextArray)
	if err != nil {
		return err
	}
	switch col.Kind {
	case KindTextArray:
		b.clauses = append(b.clauses, fmt.Sprintf("%s && %s", col.Name, b.bind(values)))
	default:
		b.clauses = append(b.clauses, fmt.Sprintf("%s = ANY(%s)", col.Name, b.bind(values)))
	}
	return nil
}

func (b *predicateBuilder) substring(name, term string) error {
	col, err := b.column(name, KindText, KindTextArray)
	if err != nil {
		return err
	}
	pattern := "%" + escapeLike(term) + "%"
	switch col.Kind {
	case KindTextArray:
		b.clauses = append(b.clauses, fmt.Sprintf("array_to_string(%s, ' ') ILIKE %s", col.Name, b.bind(pattern)))
	default:
		b.clauses = append(b.clauses, fmt.Sprintf("%s ILIKE %s", col.Name, b.bind(pattern)))
	}
	return nil
}

func (b *predicateBuilder) mapContains(name, key string, values []string) error {
	col, err := b.column(name, KindJSONMap)
	if err != nil {
		return err
	}
	b.clauses = append(b.clauses, fmt.Sprintf("(%s -> %s) ?| %s", col.Name, b.bind(key), b.bind(values)))
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func validateTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenant)
	}
	if err := uuid.Validate(tenantID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	return nil
}
