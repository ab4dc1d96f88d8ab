/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/drivers/*       Rate configs and document uploads per driver
  /api/holidays/*      Holiday declarations
  /api/settlements/*   Settlement lifecycle and day records
  /api/ingestions/*    Document ingestion sessions
  /api/health          Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Driver routes
		r.Route("/drivers/{id}", func(r chi.Router) {
			r.Get("/config", h.GetRateConfig)
			r.Put("/config", h.SaveRateConfig)
			r.Post("/documents", h.UploadDocument)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.DeclareHoliday)
			r.Delete("/{id}", h.RevokeHoliday)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", h.ListSettlements)
			r.Post("/", h.CreateSettlement)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSettlement)
				r.Put("/", h.UpdateSettlement)
				r.Delete("/", h.DeleteSettlement)
				r.Post("/status", h.TransitionSettlement)
				r.Post("/days", h.AddDays)
				r.Post("/days/import", h.ImportDays)
				r.Put("/days/{dayID}", h.EditDay)
				r.Delete("/days/{dayID}", h.RemoveDay)
			})
		})

		// Ingestion session routes
		r.Route("/ingestions", func(r chi.Router) {
			r.Get("/{id}", h.GetIngestion)
			r.Delete("/{id}", h.AbandonIngestion)
		})
	})

	return r
}
