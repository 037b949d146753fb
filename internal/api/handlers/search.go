package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storeloom/searchcore/internal/database"
	"github.com/storeloom/searchcore/internal/models"
	"github.com/storeloom/searchcore/internal/search"
	"github.com/storeloom/searchcore/internal/tenant"
)

type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]models.Product, error)
}

type TypeLister interface {
	ProductTypes(ctx context.Context, tenantID string) ([]string, error)
}

type SearchHandler struct {
	searcher Searcher
	catalog  TypeLister
}

func NewSearchHandler(searcher Searcher, catalog TypeLister) *SearchHandler {
	return &SearchHandler{searcher: searcher, catalog: catalog}
}

type searchRequestBody struct {
	Filters       search.Filter `json:"filters"`
	SemanticQuery string        `json:"semantic_query"`
	RawQuery      string        `json:"raw_query"`
	K             int           `json:"k"`
	Refine        bool          `json:"refine"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	// Unknown filter keys are rejected, not silently dropped.
	dec.DisallowUnknownFields()

	var body searchRequestBody
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	tenantID := tenant.IDFromContext(r.Context())

	products, err := h.searcher.Search(r.Context(), search.Request{
		TenantID:      tenantID.String(),
		Filter:        body.Filters,
		SemanticQuery: body.SemanticQuery,
		RawQuery:      body.RawQuery,
		K:             body.K,
		Refine:        body.Refine,
	})
	if err != nil {
		writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products, "count": len(products)})
}

func (h *SearchHandler) ProductTypes(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.IDFromContext(r.Context())

	types, err := h.catalog.ProductTypes(r.Context(), tenantID.String())
	if err != nil {
		writeSearchError(w, err)
		return
	}
	if types == nil {
		types = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"product_types": types})
}

func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidTenant), errors.Is(err, search.ErrUnknownFilterColumn):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, database.ErrPoolExhausted), errors.Is(err, database.ErrQueryTimeout):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, search.ErrEmbedder):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}
}
