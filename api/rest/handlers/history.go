package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/muz1lee/preparedness/core/repository"
)

// HistoryHandler serves grading history out of the Postgres run index.
type HistoryHandler struct {
	repo *repository.RunRepository
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(repo *repository.RunRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// HistoryItem is one row of GET /v1/history.
type HistoryItem struct {
	RunID      string `json:"run_id"`
	BatchID    string `json:"batch_id"`
	PaperID    string `json:"paper_id"`
	Submission string `json:"submission"`
	Rep        int    `json:"rep"`
	State      string `json:"state"`
	RunDir     string `json:"run_dir,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListHistory handles GET /v1/history with optional batch_id and limit
// query parameters.
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch_id")
	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		fmt.Sscanf(limitParam, "%d", &limit)
	}

	rows, err := h.repo.RecentRuns(batchID, limit)
	if err != nil {
		http.Error(w, "Failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]HistoryItem, len(rows))
	for i, row := range rows {
		state := "failed"
		if row.OK {
			state = "succeeded"
		}
		items[i] = HistoryItem{
			RunID:      row.RunID,
			BatchID:    row.BatchID,
			PaperID:    row.PaperID,
			Submission: row.Submission,
			Rep:        row.Rep,
			State:      state,
			RunDir:     row.RunDir,
			Error:      row.Error,
			CreatedAt:  row.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}
