package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zargusta/fundtracker/internal/http/auth"
	"github.com/zargusta/fundtracker/internal/http/fund"
	"github.com/zargusta/fundtracker/internal/http/respond"
)

type Options struct {
	Version        string
	AllowedOrigins []string
	Timeout        time.Duration
}

func New(opts Options, fundV1 *fund.Handler, adminV1 *fund.AdminHandler) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.KeyHeader},
		ExposedHeaders: []string{respond.RequestIDHeader},
		MaxAge:         300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(respond.Middleware(opts.Version))

		fundV1.Routes(r)
		r.Route("/admin", adminV1.Routes)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respond.Fail(w, r, http.StatusNotFound, "route not found")
		})
	})

	return router
}
