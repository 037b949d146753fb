package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloom/searchcore/internal/models"
)

type fakeFilterSearch struct {
	ids      []int64
	err      error
	calls    int
	gotLimit int
}

func (f *fakeFilterSearch) Search(_ context.Context, _ string, _ Filter, limit int) ([]int64, error) {
	f.calls++
	f.gotLimit = limit
	return f.ids, f.err
}

type fakeSemanticSearch struct {
	candidates []Candidate
	err        error
	calls      int
	gotQuery   string
	gotScope   []int64
}

func (f *fakeSemanticSearch) Search(_ context.Context, _ string, query string, _ int, scope []int64) ([]Candidate, error) {
	f.calls++
	f.gotQuery = query
	f.gotScope = scope
	return f.candidates, f.err
}

// fakeHydrator returns a product per requested ID, in request order, like
// the real store does.
type fakeHydrator struct {
	err    error
	gotIDs []int64
}

func (f *fakeHydrator) ProductsByIDs(_ context.Context, _ string, ids []int64) ([]models.Product, error) {
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, models.Product{ID: id, Title: fmt.Sprintf("product %d", id)})
	}
	return products, nil
}

type fakeRefiner struct {
	out       []models.Product
	err       error
	calls     int
	gotQuery  string
	gotWindow []models.Product
}

func (f *fakeRefiner) Refine(_ context.Context, query string, products []models.Product) ([]models.Product, error) {
	f.calls++
	f.gotQuery = query
	f.gotWindow = products
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func ids(products []models.Product) []int64 {
	out := make([]int64, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestRetriever_EmptyRequestYieldsEmptyResult(t *testing.T) {
	filters := &fakeFilterSearch{}
	semantic := &fakeSemanticSearch{}
	r := NewRetriever(filters, semantic, &fakeHydrator{}, nil)

	products, err := r.Search(context.Background(), Request{TenantID: testTenant})
	require.NoError(t, err)

	assert.Empty(t, products)
	assert.Zero(t, filters.calls)
	assert.Zero(t, semantic.calls)
}

func TestRetriever_RejectsInvalidTenant(t *testing.T) {
	r := NewRetriever(&fakeFilterSearch{}, &fakeSemanticSearch{}, &fakeHydrator{}, nil)

	_, err := r.Search(context.Background(), Request{TenantID: "nope", SemanticQuery: "shoes"})
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestRetriever_FilterOnlyKeepsRecencyOrder(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{30, 20, 10}}
	semantic := &fakeSemanticSearch{}
	r := NewRetriever(filters, semantic, &fakeHydrator{}, nil)

	products, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
		K:        5,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{30, 20, 10}, ids(products))
	assert.Zero(t, semantic.calls)
	assert.Equal(t, filterPoolLimit, filters.gotLimit)
	for _, p := range products {
		assert.Nil(t, p.SimilarityScore)
	}
}

func TestRetriever_KIsClamped(t *testing.T) {
	manyIDs := make([]int64, 40)
	for i := range manyIDs {
		manyIDs[i] = int64(i + 1)
	}

	tests := []struct {
		name    string
		k       int
		wantLen int
	}{
		{"zero falls back to default", 0, DefaultK},
		{"negative falls back to default", -3, DefaultK},
		{"above max is capped", 100, MaxK},
		{"in range is honored", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(&fakeFilterSearch{ids: manyIDs}, &fakeSemanticSearch{}, &fakeHydrator{}, nil)

			products, err := r.Search(context.Background(), Request{
				TenantID: testTenant,
				Filter:   Filter{ProductType: "Shoes"},
				K:        tt.k,
			})
			require.NoError(t, err)
			assert.Len(t, products, tt.wantLen)
		})
	}
}

func TestRetriever_SemanticOnlyAttachesScores(t *testing.T) {
	semantic := &fakeSemanticSearch{candidates: []Candidate{
		{ProductID: 5, Similarity: 0.91},
		{ProductID: 2, Similarity: 0.77},
		{ProductID: 9, Similarity: 0.40},
	}}
	filters := &fakeFilterSearch{}
	r := NewRetriever(filters, semantic, &fakeHydrator{}, nil)

	products, err := r.Search(context.Background(), Request{
		TenantID:      testTenant,
		SemanticQuery: "comfortable running shoes",
		K:             3,
	})
	require.NoError(t, err)

	assert.Zero(t, filters.calls)
	assert.Nil(t, semantic.gotScope)
	assert.Equal(t, []int64{5, 2, 9}, ids(products))

	require.NotNil(t, products[0].SimilarityScore)
	assert.Equal(t, 0.91, *products[0].SimilarityScore)
	require.NotNil(t, products[2].SimilarityScore)
	assert.Equal(t, 0.40, *products[2].SimilarityScore)
}

func TestRetriever_SemanticScopeIsFilteredIDs(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{1, 2, 3, 4}}
	semantic := &fakeSemanticSearch{candidates: []Candidate{
		{ProductID: 3, Similarity: 0.8},
		{ProductID: 1, Similarity: 0.6},
	}}
	r := NewRetriever(filters, semantic, &fakeHydrator{}, nil)

	products, err := r.Search(context.Background(), Request{
		TenantID:      testTenant,
		Filter:        Filter{Vendor: "Nike"},
		SemanticQuery: "marathon",
		K:             2,
	})
	require.NoError(t, err)

	// Semantic ranking replaces the filter stage's recency order.
	assert.Equal(t, []int64{1, 2, 3, 4}, semantic.gotScope)
	assert.Equal(t, "marathon", semantic.gotQuery)
	assert.Equal(t, []int64{3, 1}, ids(products))
}

func TestRetriever_EmptyFilterScopeShortCircuits(t *testing.T) {
	filters := &fakeFilterSearch{ids: nil}
	semantic := &fakeSemanticSearch{candidates: []Candidate{{ProductID: 99, Similarity: 0.9}}}
	r := NewRetriever(filters, semantic, &fakeHydrator{}, nil)

	products, err := r.Search(context.Background(), Request{
		TenantID:      testTenant,
		Filter:        Filter{Vendor: "Nike"},
		SemanticQuery: "marathon",
		K:             5,
	})
	require.NoError(t, err)

	// Nothing passed the filter, so semantic search must not widen the
	// scope back to the whole tenant.
	assert.Empty(t, products)
	assert.Zero(t, semantic.calls)
}

func TestRetriever_TruncatesBeforeHydration(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{1, 2, 3, 4, 5, 6, 7, 8}}
	hydrator := &fakeHydrator{}
	r := NewRetriever(filters, &fakeSemanticSearch{}, hydrator, nil)

	_, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
		K:        3,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, hydrator.gotIDs)
}

func TestRetriever_PropagatesSearchErrors(t *testing.T) {
	filterErr := errors.New("boom")
	r := NewRetriever(&fakeFilterSearch{err: filterErr}, &fakeSemanticSearch{}, &fakeHydrator{}, nil)

	_, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
	})
	assert.ErrorIs(t, err, filterErr)

	embErr := fmt.Errorf("%w: quota exceeded", ErrEmbedder)
	r = NewRetriever(&fakeFilterSearch{}, &fakeSemanticSearch{err: embErr}, &fakeHydrator{}, nil)

	_, err = r.Search(context.Background(), Request{
		TenantID:      testTenant,
		SemanticQuery: "shoes",
	})
	assert.ErrorIs(t, err, ErrEmbedder)
}

func TestRetriever_RefinerReordersAccepted(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{1, 2, 3, 4, 5}}
	refined := []models.Product{{ID: 4}, {ID: 1}, {ID: 5}}
	refiner := &fakeRefiner{out: refined}
	r := NewRetriever(filters, &fakeSemanticSearch{}, &fakeHydrator{}, refiner)

	products, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
		RawQuery: "shoes for a marathon",
		K:        5,
		Refine:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, refiner.calls)
	assert.Equal(t, "shoes for a marathon", refiner.gotQuery)
	assert.Len(t, refiner.gotWindow, 5)
	assert.Equal(t, []int64{4, 1, 5}, ids(products))
}

func TestRetriever_RefinerFailureFallsBackToTopThree(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{1, 2, 3, 4, 5}}
	refiner := &fakeRefiner{err: errors.New("judge unavailable")}
	r := NewRetriever(filters, &fakeSemanticSearch{}, &fakeHydrator{}, refiner)

	products, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
		K:        5,
		Refine:   true,
	})
	require.NoError(t, err)

	// Defined degrade: first 3 of the 5 candidates, original order.
	assert.Equal(t, []int64{1, 2, 3}, ids(products))
}

func TestRetriever_RefinerSkippedWhenNotRequested(t *testing.T) {
	filters := &fakeFilterSearch{ids: []int64{1, 2, 3}}
	refiner := &fakeRefiner{}
	r := NewRetriever(filters, &fakeSemanticSearch{}, &fakeHydrator{}, refiner)

	_, err := r.Search(context.Background(), Request{
		TenantID: testTenant,
		Filter:   Filter{ProductType: "Shoes"},
		K:        3,
	})
	require.NoError(t, err)

	assert.Zero(t, refiner.calls)
}

func TestClampK(t *testing.T) {
	assert.Equal(t, DefaultK, clampK(0))
	assert.Equal(t, DefaultK, clampK(-1))
	assert.Equal(t, 1, clampK(1))
	assert.Equal(t, MaxK, clampK(MaxK))
	assert.Equal(t, MaxK, clampK(MaxK+1))
}
