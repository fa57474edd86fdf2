package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/groupify/accounts-go/internal/metrics"
	"github.com/groupify/accounts-go/internal/middleware"
)

// NewRouter mounts the account endpoints at the root and under /api/v1/auth.
func NewRouter(accounts *AccountHandler, m *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	routes := func(r chi.Router) {
		r.Post("/register", accounts.HandleRegister)
		r.Post("/confirm-email", accounts.HandleConfirmEmail)
		r.Post("/login", accounts.HandleLogin)
	}
	r.Group(routes)
	r.Route("/api/v1/auth", routes)

	return r
}
