package router

import (
	"net/http"

	"tradekart/internal/handler"
	"tradekart/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	cartHandler *handler.CartHandler,
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productID}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
			r.Post("/discount", cartHandler.ApplyDiscount)
			r.Post("/clear", cartHandler.Clear)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Checkout)
			r.Get("/", orderHandler.List)
			r.Get("/stats", orderHandler.Stats)
			r.Get("/{id}", orderHandler.GetByID)
			r.Put("/{id}/status", orderHandler.UpdateStatus)
			r.Post("/{id}/cancel", orderHandler.Cancel)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", paymentHandler.Create)
			r.Get("/{id}", paymentHandler.GetByID)
			r.Post("/{id}/refund", paymentHandler.Refund)
			r.Post("/{id}/simulate/paid", paymentHandler.SimulatePaid)
			r.Post("/{id}/simulate/failed", paymentHandler.SimulateFailed)
		})

		r.Post("/webhooks/payment", paymentHandler.Webhook)
	})

	return r
}
