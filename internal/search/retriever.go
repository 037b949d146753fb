package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/storeloom/searchcore/internal/models"
)

const (
	// DefaultK and MaxK bound the caller-requested result count.
	DefaultK = 5
	MaxK     = 25

	// filterPoolLimit caps the structured-filter candidate pool handed to
	// the semantic stage.
	filterPoolLimit = 1000

	// The refiner judges at most refineWindow candidates and keeps at
	// most refineKeep.
	refineWindow = 5
	refineKeep   = 3
)

// Request is one retrieval call from the conversational layer.
type Request struct {
	TenantID      string `json:"tenant_id"`
	Filter        Filter `json:"filters"`
	SemanticQuery string `json:"semantic_query,omitempty"`

	// RawQuery is the user's original request text, used by the result
	// refiner. Defaults to SemanticQuery when empty.
	RawQuery string `json:"raw_query,omitempty"`

	K      int  `json:"k,omitempty"`
	Refine bool `json:"refine,omitempty"`
}

type FilterSearcher interface {
	Search(ctx context.Context, tenantID string, f Filter, limit int) ([]int64, error)
}

type SemanticSearcher interface {
	Search(ctx context.Context, tenantID, query string, limit int, scope []int64) ([]Candidate, error)
}

// Hydrator resolves candidate IDs into full product records, preserving the
// input ID order.
type Hydrator interface {
	ProductsByIDs(ctx context.Context, tenantID string, ids []int64) ([]models.Product, error)
}

// Refiner applies an external relevance judgment to the top of the funnel's
// output. Errors never surface to the caller; the retriever degrades to the
// unrefined top candidates.
type Refiner interface {
	Refine(ctx context.Context, query string, products []models.Product) ([]models.Product, error)
}

// Retriever composes filter search and semantic search into one funnel:
// structured filters narrow the candidate scope, semantic ranking orders it,
// the survivors are hydrated and optionally refined. Stateless across calls.
type Retriever struct {
	filters  FilterSearcher
	semantic SemanticSearcher
	store    Hydrator
	refiner  Refiner // optional
}

func NewRetriever(filters FilterSearcher, semantic SemanticSearcher, store Hydrator, refiner Refiner) *Retriever {
	return &Retriever{filters: filters, semantic: semantic, store: store, refiner: refiner}
}

func (r *Retriever) Search(ctx context.Context, req Request) ([]models.Product, error) {
	if err := validateTenant(req.TenantID); err != nil {
		return nil, err
	}

	k := clampK(req.K)
	hasFilters := !req.Filter.IsZero()
	query := strings.TrimSpace(req.SemanticQuery)

	// Nothing to search by is a defined edge case, not an error.
	if !hasFilters && query == "" {
		return []models.Product{}, nil
	}

	var ids []int64

	if hasFilters {
		filtered, err := r.filters.Search(ctx, req.TenantID, req.Filter, filterPoolLimit)
		if err != nil {
			return nil, err
		}
		// An empty filtered scope stays empty: semantic ranking must
		// never reintroduce excluded products.
		if len(filtered) == 0 {
			return []models.Product{}, nil
		}
		ids = filtered
	}

	var scores map[int64]float64
	if query != "" {
		candidates, err := r.semantic.Search(ctx, req.TenantID, query, filterPoolLimit, ids)
		if err != nil {
			return nil, err
		}
		// Semantic order replaces the filter stage's recency order.
		ids = make([]int64, 0, len(candidates))
		scores = make(map[int64]float64, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.ProductID)
			scores[c.ProductID] = c.Similarity
		}
	}

	if len(ids) > k {
		ids = ids[:k]
	}

	products, err := r.store.ProductsByIDs(ctx, req.TenantID, ids)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	for i := range products {
		if s, ok := scores[products[i].ID]; ok {
			score := s
			products[i].SimilarityScore = &score
		}
	}

	if req.Refine && r.refiner != nil && len(products) > 0 {
		products = r.refine(ctx, req, products)
	}

	return products, nil
}

func (r *Retriever) refine(ctx context.Context, req Request, products []models.Product) []models.Product {
	window := products
	if len(window) > refineWindow {
		window = window[:refineWindow]
	}

	query := req.RawQuery
	if query == "" {
		query = req.SemanticQuery
	}

	refined, err := r.refiner.Refine(ctx, query, window)
	if err != nil {
		// Defined degrade: top candidates, original order, no error.
		slog.Warn("result refiner failed, returning unrefined candidates", "error", err)
		if len(window) > refineKeep {
			window = window[:refineKeep]
		}
		return window
	}
	if len(refined) > refineKeep {
		refined = refined[:refineKeep]
	}
	return refined
}

func clampK(k int) int {
	switch {
	case k <= 0:
		return DefaultK
	case k > MaxK:
		return MaxK
	default:
		return k
	}
}
