package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/storeloom/searchcore/internal/queue"
	"github.com/storeloom/searchcore/internal/tenant"
)

type Enqueuer interface {
	EnqueueEmbeddingBackfill(payload queue.EmbeddingBackfillPayload) error
}

// AdminHandler exposes tenant-scoped maintenance operations.
type AdminHandler struct {
	jobs Enqueuer
}

func NewAdminHandler(jobs Enqueuer) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// BackfillEmbeddings queues an embedding backfill batch for the caller's
// tenant. The worker picks up products whose embedding column is still NULL.
func (h *AdminHandler) BackfillEmbeddings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BatchSize int `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	tenantID := tenant.IDFromContext(r.Context())

	err := h.jobs.EnqueueEmbeddingBackfill(queue.EmbeddingBackfillPayload{
		TenantID:  tenantID.String(),
		BatchSize: body.BatchSize,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue backfill"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
