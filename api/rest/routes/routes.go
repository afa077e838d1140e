package routes

import (
	"github.com/muz1lee/preparedness/api/rest/handlers"
	"github.com/muz1lee/preparedness/core/monitoring"
	"github.com/muz1lee/preparedness/core/repository"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, tracker *monitoring.BatchTracker) {
	statusHandler := handlers.NewStatusHandler(tracker)

	api := r.PathPrefix("/v1").Subrouter()

	// Batch progress endpoints
	api.HandleFunc("/batch", statusHandler.GetBatch).Methods("GET")
	api.HandleFunc("/runs", statusHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{paper_id}/{submission}/{rep:[0-9]+}", statusHandler.GetRun).Methods("GET")
}

// SetupHistoryRoutes configures the run-index history routes.
func SetupHistoryRoutes(r *mux.Router, repo *repository.RunRepository) {
	historyHandler := handlers.NewHistoryHandler(repo)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/history", historyHandler.ListHistory).Methods("GET")
}
