package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/muz1lee/preparedness/api/rest/routes"
	"github.com/muz1lee/preparedness/config"
	"github.com/muz1lee/preparedness/core/repository"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// server exposes finished grading results: the run-index history from
// Postgres and the raw files under the output directory (journals, grader
// outputs, comparison reports). Live batch progress is served by pbgrade
// itself via --status-addr.
func main() {
	cfg := config.Load()

	addr := cfg.StatusAddr
	if addr == "" {
		addr = ":8080"
	}

	r := mux.NewRouter()

	// History needs the run index; without a DSN only files are served.
	if cfg.PostgresDSN != "" {
		db, err := repository.Connect(cfg.PostgresDSN)
		if err != nil {
			logrus.WithError(err).Fatal("connect run index")
		}
		defer db.Close()

		repo := repository.NewRunRepository(db)
		if err := repo.Migrate(); err != nil {
			logrus.WithError(err).Fatal("migrate run index")
		}
		routes.SetupHistoryRoutes(r, repo)
	} else {
		logrus.Warn("POSTGRES_DSN not set, /v1/history disabled")
	}

	r.PathPrefix("/reports/").Handler(
		http.StripPrefix("/reports/", http.FileServer(http.Dir(cfg.OutDir))))

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    addr,
			"out_dir": cfg.OutDir,
		}).Info("results server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")
	if err := server.Shutdown(context.Background()); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}
	logrus.Info("server exited")
}
