// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/traduceo/translation-engine/cmd/translation-api/handlers"
	"github.com/traduceo/translation-engine/cmd/translation-api/middleware"
	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, app *application) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"translation-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	jobsHandler := handlers.NewJobsHandler(
		logger,
		app.repos.Jobs,
		app.sources,
		app.artifacts,
		app.cache,
		app.enqueuer,
		app.pipeline,
		cfg.Server.MaxUploadBytes,
	)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobsHandler.Create)
			r.Get("/", jobsHandler.List)

			r.Route("/{jobId}", func(r chi.Router) {
				r.Get("/", jobsHandler.Detail)
				r.Get("/status", jobsHandler.Status)
				r.Post("/cancel", jobsHandler.Cancel)
				r.Get("/download", jobsHandler.Download)
				r.Get("/preview", jobsHandler.Preview)
			})
		})
	})

	return r
}
