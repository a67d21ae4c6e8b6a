package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freightlens/reconciler/internal/assistant"
	"github.com/freightlens/reconciler/internal/repository"
	"github.com/freightlens/reconciler/internal/snapshot"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	store *snapshot.Store,
	orderRepo *repository.OrderRepo,
	assistantSvc *assistant.Service,
) http.Handler {
	h := &Handlers{
		store:        store,
		orderRepo:    orderRepo,
		assistantSvc: assistantSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Queries.
		r.Get("/stats", h.GetStats)
		r.Get("/customers", h.GetCustomers)
		r.Get("/customers/{name}/orders", h.GetOrdersByCustomer)

		// Snapshot lifecycle.
		r.Post("/upload", h.Upload)
		r.Post("/clear", h.Clear)
		r.Post("/refresh", h.Refresh)

		// Assistant.
		r.Post("/chat", h.Chat)
	})

	return r
}
