package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/storeloom/searchcore/internal/llm"
	"github.com/storeloom/searchcore/internal/models"
)

// LLMRefiner asks a chat model to judge the relevance of the funnel's top
// candidates. It returns an error for any judge failure or malformed output;
// the retriever owns the fallback.
type LLMRefiner struct {
	gateway llm.Gateway
	model   string
}

func NewLLMRefiner(gw llm.Gateway, model string) *LLMRefiner {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLMRefiner{gateway: gw, model: model}
}

type judgment struct {
	ProductID int64  `json:"product_id"`
	Rank      int    `json:"rank"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason"`
}

type candidateSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	MinPrice    float64  `json:"min_price"`
	MaxPrice    float64  `json:"max_price"`
	HasDiscount bool     `json:"has_discount"`
	Tags        []string `json:"tags,omitempty"`
}

const refinerSystemPrompt = `You are a product relevance judge for an e-commerce catalog search.
Given a shopper's request and a list of candidate products, decide which candidates truly fit the request.
Accept at most 3 products and rank the accepted ones (1 = best fit).
Return ONLY a JSON array of objects with "product_id", "rank", "accepted" and "reason" fields. Example:
[{"product_id": 42, "rank": 1, "accepted": true, "reason": "lightweight running shoe under budget"}]`

func (r *LLMRefiner) Refine(ctx context.Context, query string, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return products, nil
	}

	summaries := make([]candidateSummary, len(products))
	byID := make(map[int64]models.Product, len(products))
	for i, p := range products {
		summaries[i] = candidateSummary{
			ID:          p.ID,
			Title:       p.Title,
			Vendor:      p.Vendor,
			ProductType: p.ProductType,
			MinPrice:    p.MinPrice,
			MaxPrice:    p.MaxPrice,
			HasDiscount: p.HasDiscount,
			Tags:        p.Tags,
		}
		byID[p.ID] = p
	}

	candidatesJSON, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: refinerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Request: %s\n\nCandidates:\n%s", query, candidatesJSON)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}

	judgments, err := parseJudgments(resp.Content)
	if err != nil {
		return nil, err
	}

	var accepted []judgment
	for _, j := range judgments {
		if !j.Accepted {
			continue
		}
		if _, ok := byID[j.ProductID]; !ok {
			// The judge invented an ID; treat the whole output as
			// untrustworthy.
			return nil, fmt.Errorf("judge returned unknown product id %d", j.ProductID)
		}
		accepted = append(accepted, j)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Rank < accepted[j].Rank
	})
	if len(accepted) > refineKeep {
		accepted = accepted[:refineKeep]
	}

	refined := make([]models.Product, 0, len(accepted))
	for _, j := range accepted {
		p := byID[j.ProductID]
		p.MatchReason = j.Reason
		refined = append(refined, p)
	}
	return refined, nil
}

func parseJudgments(content string) ([]judgment, error) {
	content = strings.TrimSpace(content)
	// Strip markdown code fences if present
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var judgments []judgment
	if err := json.Unmarshal([]byte(content), &judgments); err != nil {
		return nil, fmt.Errorf("parse judge output: %w", err)
	}
	return judgments, nil
}
