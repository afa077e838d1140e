package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/muz1lee/preparedness/core/monitoring"

	"github.com/gorilla/mux"
)

// StatusHandler serves read-only progress for the batch currently
// running.
type StatusHandler struct {
	tracker *monitoring.BatchTracker
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(tracker *monitoring.BatchTracker) *StatusHandler {
	return &StatusHandler{tracker: tracker}
}

// BatchResponse is the payload for GET /v1/batch.
type BatchResponse struct {
	BatchID   string `json:"batch_id"`
	StartedAt string `json:"started_at"`
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// RunResponse is one row of GET /v1/runs.
type RunResponse struct {
	PaperID    string `json:"paper_id"`
	Submission string `json:"submission"`
	Rep        int    `json:"rep"`
	State      string `json:"state"`
	RunDir     string `json:"run_dir,omitempty"`
}

// GetBatch returns summary counts for the batch.
func (h *StatusHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	response := BatchResponse{
		BatchID:   snap.BatchID,
		StartedAt: snap.StartedAt.Format(time.RFC3339),
		Total:     snap.Total,
		Pending:   snap.Pending,
		Running:   snap.Running,
		Succeeded: snap.Succeeded,
		Failed:    snap.Failed,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ListRuns returns per-unit states, optionally filtered with ?state=.
func (h *StatusHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	stateFilter := r.URL.Query().Get("state")

	runs := h.tracker.Runs()
	items := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		if stateFilter != "" && string(run.State) != stateFilter {
			continue
		}
		items = append(items, RunResponse{
			PaperID:    run.Unit.PaperID,
			Submission: run.Unit.Submission,
			Rep:        run.Unit.RepIndex + 1,
			State:      string(run.State),
			RunDir:     run.RunDir,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

// GetRun returns the state of one unit, addressed as
// /v1/runs/{paper_id}/{submission}/{rep}.
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rep, err := strconv.Atoi(vars["rep"])
	if err != nil || rep < 1 {
		http.Error(w, "Invalid rep", http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s/%s/rep%d", vars["paper_id"], vars["submission"], rep)
	run, found := h.tracker.Run(key)
	if !found {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := RunResponse{
		PaperID:    run.Unit.PaperID,
		Submission: run.Unit.Submission,
		Rep:        run.Unit.RepIndex + 1,
		State:      string(run.State),
		RunDir:     run.RunDir,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
