package queue

const TypeEmbeddingBackfill = "embedding:backfill"

type EmbeddingBackfillPayload struct {
	TenantID  string `json:"tenant_id"`
	BatchSize int    `json:"batch_size,omitempty"`
}
