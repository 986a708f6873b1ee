package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// HealthChecker is satisfied by the Postgres pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Account  *AccountHandler
	Admin    *AdminHandler
}

// NewRouter mounts all API routes. limiter and health may be nil.
func NewRouter(h Handlers, authenticator *Authenticator, limiter *RateLimiter, health HealthChecker) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	var writeLimit func(http.Handler) http.Handler
	if limiter != nil {
		writeLimit = limiter.Middleware
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(api chi.Router) {
		api.Route("/products", func(r chi.Router) {
			r.Use(authenticator.OptionalUser)
			h.Catalog.RegisterRoutes(r, writeLimit)
		})
		api.Route("/cart", func(r chi.Router) {
			r.Use(authenticator.OptionalUser)
			h.Cart.RegisterRoutes(r)
		})
		api.Route("/checkout", func(r chi.Router) {
			r.Use(authenticator.OptionalUser)
			h.Checkout.RegisterRoutes(r, writeLimit)
		})
		api.Route("/account", func(r chi.Router) {
			r.Use(authenticator.RequireUser)
			h.Account.RegisterRoutes(r)
		})
		api.Route("/admin", func(r chi.Router) {
			r.Use(authenticator.RequireAdmin)
			h.Admin.RegisterRoutes(r)
		})
	})

	return router
}
