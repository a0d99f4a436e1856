package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/print-admin/internal/auth"
	"github.com/vasiliy-maslov/print-admin/internal/handler"
)

type RouteRegistrar interface {
	RegisterRoutes(router chi.Router)
}

// NewRouter mounts the admin API behind session verification. /health stays
// public.
func NewRouter(verifier auth.Verifier, requestTimeout time.Duration, handlers ...RouteRegistrar) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(auth.Middleware(verifier))
		for _, h := range handlers {
			h.RegisterRoutes(admin)
		}
	})

	return r
}

var (
	_ RouteRegistrar = (*handler.OrderHandler)(nil)
	_ RouteRegistrar = (*handler.AdminHandler)(nil)
)
