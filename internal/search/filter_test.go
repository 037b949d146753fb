package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "5b5e2750-3f86-4bfa-9a7d-0d2cb6d0dd6a"

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func TestBuildFilterQuery_Empty(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{}, 1000)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM products WHERE tenant_id = $1 ORDER BY updated_at DESC, id DESC LIMIT $2",
		sql,
	)
	assert.Equal(t, []any{testTenant, 1000}, args)
}

func TestBuildFilterQuery_Equality(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{
		ProductType: "Shoes",
		Vendor:      "Nike",
	}, 50)
	require.NoError(t, err)

	assert.Contains(t, sql, "product_type = $2")
	assert.Contains(t, sql, "vendor = $3")
	assert.Equal(t, []any{testTenant, "Shoes", "Nike", 50}, args)
}

func TestBuildFilterQuery_PriceRangeOverlap(t *testing.T) {
	// The requested interval [20, 100] must overlap the product's own
	// price interval: cross-field comparisons, not same-column bounds.
	sql, args, err := buildFilterQuery(testTenant, Filter{
		MinPrice: f64(20),
		MaxPrice: f64(100),
	}, 10)
	require.NoError(t, err)

	assert.Contains(t, sql, "max_price >= $2")
	assert.Contains(t, sql, "min_price <= $3")
	assert.Equal(t, []any{testTenant, 20.0, 100.0, 10}, args)
}

func TestBuildFilterQuery_HasDiscount(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{HasDiscount: boolp(true)}, 10)
	require.NoError(t, err)

	assert.Contains(t, sql, "has_discount = $2")
	assert.Equal(t, []any{testTenant, true, 10}, args)
}

func TestBuildFilterQuery_SetMembershipScalarColumn(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{
		ProductTypes: []string{"Shoes", "Sandals"},
	}, 10)
	require.NoError(t, err)

	// Scalar column: membership, not overlap.
	assert.Contains(t, sql, "product_type = ANY($2)")
	assert.NotContains(t, sql, "product_type &&")
	assert.Equal(t, []any{testTenant, []string{"Shoes", "Sandals"}, 10}, args)
}

func TestBuildFilterQuery_OverlapArrayColumn(t *testing.T) {
	sql, _, err := buildFilterQuery(testTenant, Filter{
		TagsAny: []string{"running", "trail"},
	}, 10)
	require.NoError(t, err)

	// Array column: overlap operator, chosen from the schema descriptor.
	assert.Contains(t, sql, "tags && $2")
	assert.NotContains(t, sql, "tags = ANY")
}

func TestBuildFilterQuery_SubstringOnArrayColumn(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{TagContains: "water"}, 10)
	require.NoError(t, err)

	assert.Contains(t, sql, "array_to_string(tags, ' ') ILIKE $2")
	assert.Equal(t, []any{testTenant, "%water%", 10}, args)
}

func TestBuildFilterQuery_SubstringEscapesWildcards(t *testing.T) {
	_, args, err := buildFilterQuery(testTenant, Filter{TagContains: "100%_cotton"}, 10)
	require.NoError(t, err)

	assert.Equal(t, `%100\%\_cotton%`, args[1])
}

func TestBuildFilterQuery_OptionsContainment(t *testing.T) {
	sql, args, err := buildFilterQuery(testTenant, Filter{
		Options: map[string][]string{
			"Size":  {"42"},
			"Color": {"Red", "Blue"},
		},
	}, 10)
	require.NoError(t, err)

	// Keys are compiled in sorted order for deterministic SQL.
	assert.Contains(t, sql, "(options -> $2) ?| $3")
	assert.Contains(t, sql, "(options -> $4) ?| $5")
	assert.Equal(t, []any{testTenant, "Color", []string{"Red", "Blue"}, "Size", []string{"42"}, 10}, args)
}

func TestBuildFilterQuery_AllValuesParameterized(t *testing.T) {
	sql, _, err := buildFilterQuery(testTenant, Filter{
		ProductType: "Shoes'; DROP TABLE products; --",
	}, 10)
	require.NoError(t, err)

	assert.NotContains(t, sql, "DROP TABLE")
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{ProductType: "Shoes"}.IsZero())
	assert.False(t, Filter{MinPrice: f64(0)}.IsZero())
	assert.False(t, Filter{HasDiscount: boolp(false)}.IsZero())
	assert.False(t, Filter{Options: map[string][]string{"Size": {"42"}}}.IsZero())
}

func TestValidateTenant(t *testing.T) {
	assert.NoError(t, validateTenant(testTenant))
	assert.ErrorIs(t, validateTenant(""), ErrInvalidTenant)
	assert.ErrorIs(t, validateTenant("not-a-uuid"), ErrInvalidTenant)
}

func TestPredicateBuilder_UnknownColumn(t *testing.T) {
	b := newPredicateBuilder(ProductSchema())

	err := b.equality("body_html", "x")
	assert.ErrorIs(t, err, ErrUnknownFilterColumn)

	// Known column, wrong filter kind for its declared type.
	err = b.mapContains("vendor", "Color", []string{"Red"})
	assert.ErrorIs(t, err, ErrUnknownFilterColumn)
}
