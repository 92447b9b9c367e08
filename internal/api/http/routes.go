package http

import (
	"net/http"

	"walletbot/internal/api/http/handlers"
	"walletbot/internal/api/http/mw"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Middlewares every field is optional, nil means not mounted
type Middlewares struct {
	Logging   *mw.LoggingMiddleware
	Gzip      *mw.GzipMiddleware
	CORS      *mw.CORSMiddleware
	RateLimit *mw.RateLimitMiddleware
	JWT       *mw.JWTMiddleware
}

func BuildRouter(h *handlers.Handler, metricsHandler http.Handler, m Middlewares) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if m.Logging != nil {
		r.Use(m.Logging.Handler)
	}
	r.Use(middleware.Recoverer)
	if m.CORS != nil {
		r.Use(m.CORS.Handler())
	}

	// tech endpoints, no auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// api: ip limit -> jwt -> subject limit
	r.Group(func(api chi.Router) {
		if m.Gzip != nil {
			api.Use(m.Gzip.Handler)
		}
		if m.RateLimit != nil {
			api.Use(m.RateLimit.Handler)
		}
		if m.JWT != nil {
			api.Use(m.JWT.Handler)
			if m.RateLimit != nil {
				api.Use(m.RateLimit.SubjectHandler)
			}
		}

		api.Get("/api/wallets/{address}/report", h.WalletReport)
	})

	return r
}
