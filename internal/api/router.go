package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mertakgul/payflow/internal/auth"
	"github.com/mertakgul/payflow/internal/config"
	"github.com/mertakgul/payflow/internal/metrics"
	"github.com/mertakgul/payflow/internal/middleware"
	"github.com/mertakgul/payflow/internal/services"
)

func NewRouter(cfg config.Config, tm *auth.TokenManager, us *services.UserService, as *services.AccountService) http.Handler {
	h := &handlers{tm: tm, users: us, accounts: as}
	authmw := middleware.NewAuthMiddleware(tm)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)

		r.Post("/users", h.createUser)
		r.Get("/users", h.searchUsers)
		r.Get("/users/{id}", h.getUser)

		r.Group(func(r chi.Router) {
			r.Use(authmw.Auth)
			r.Put("/users/{id}/contacts", h.updateContacts)
			r.Get("/balance", h.getBalance)
			r.Post("/transfer", h.transfer)
			r.Get("/transfers", h.listTransfers)
		})
	})

	return r
}
