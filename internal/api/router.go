package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the API router.
func NewRouter(deps *Dependencies) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	healthHandler := NewHealthHandler(deps)
	triggerHandler := NewTriggerHandler(deps)

	r.Get("/health", healthHandler.Health)
	r.Get("/status", healthHandler.Status)

	r.Route("/trigger", func(r chi.Router) {
		r.Post("/poll", triggerHandler.Poll)
		r.Post("/alerts", triggerHandler.Alerts)
		r.Post("/reset-cursor", triggerHandler.ResetCursor)
		r.Post("/clear-alerts", triggerHandler.ClearAlerts)
	})

	return r
}
