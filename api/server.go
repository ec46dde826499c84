/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the PWA frontend

ROUTE GROUPS:
  /api/documents/{syncID}/*   Document and record operations
  /api/scenarios              Demo scenario listing

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

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
		r.Get("/scenarios", h.ListScenarios)

		r.Route("/documents/{syncID}", func(r chi.Router) {
			r.Get("/", h.GetDocument)
			r.Put("/", h.PutDocument)
			r.Get("/sync", h.GetSyncStatus)
			r.Post("/flush", h.FlushDocument)
			r.Get("/reconcile", h.GetReconcileReport)

			r.Post("/projects", h.CreateProject)
			r.Post("/vendors", h.CreateVendor)
			r.Get("/vendors/{id}/outstanding", h.GetVendorOutstanding)
			r.Post("/materials", h.CreateMaterial)
			r.Get("/materials/{id}/batches", h.GetMaterialLots)

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", h.CreateExpense)
				r.Put("/{id}", h.UpdateExpense)
				r.Delete("/{id}", h.DeleteExpense)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", h.CreatePayment)
				r.Put("/{id}", h.UpdatePayment)
				r.Delete("/{id}", h.DeletePayment)
			})

			r.Post("/scenarios/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
