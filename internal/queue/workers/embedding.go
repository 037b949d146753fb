package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/storeloom/searchcore/internal/catalog"
	"github.com/storeloom/searchcore/internal/embedding"
	"github.com/storeloom/searchcore/internal/models"
	"github.com/storeloom/searchcore/internal/queue"
)

const defaultBatchSize = 100

// BackfillStore is the slice of the catalog store the worker needs.
type BackfillStore interface {
	ProductsMissingEmbeddings(ctx context.Context, tenantID string, limit int) ([]models.Product, error)
	SetEmbedding(ctx context.Context, tenantID string, productID int64, vec []float32) error
}

// EmbeddingWorker backfills the embedding column for products that were
// ingested without one. Until it runs, those products stay invisible to
// semantic search but remain reachable through structured filters.
type EmbeddingWorker struct {
	store    BackfillStore
	embedder embedding.Embedder
}

func NewEmbeddingWorker(store BackfillStore, embedder embedding.Embedder) *EmbeddingWorker {
	return &EmbeddingWorker{store: store, embedder: embedder}
}

func (w *EmbeddingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EmbeddingBackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	batchSize := payload.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	products, err := w.store.ProductsMissingEmbeddings(ctx, payload.TenantID, batchSize)
	if err != nil {
		return fmt.Errorf("list products missing embeddings: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = catalog.EmbeddingText(p)
	}

	vectors, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(products) {
		return fmt.Errorf("embedder returned %d vectors for %d products", len(vectors), len(products))
	}

	for i, p := range products {
		if err := w.store.SetEmbedding(ctx, payload.TenantID, p.ID, vectors[i]); err != nil {
			return fmt.Errorf("store embedding for product %d: %w", p.ID, err)
		}
	}

	slog.Info("embedding backfill batch done", "tenant_id", payload.TenantID, "count", len(products))
	return nil
}
