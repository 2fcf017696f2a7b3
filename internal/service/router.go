// Package service exposes the AquaGuard JSON API over HTTP.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/metrics"
	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/stats"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// healthTimeout bounds the store ping of the health check.
const healthTimeout = 2 * time.Second

// Config holds the dependencies of the router.
type Config struct {
	Store         storage.Store
	JWTManager    *auth.JWTManager
	Authenticator auth.Authenticator

	// Metrics enables request metrics and the /metrics endpoint when set.
	Metrics *metrics.Metrics

	// RateLimiter limits pledge submissions per client when set.
	RateLimiter *middleware.RateLimiter

	AllowedOrigins []string

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxy bool
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))

	aggregator := stats.NewAggregator(cfg.Store, cfg.Store)
	pledges := NewPledgeService(cfg.Store, aggregator, cfg.JWTManager, cfg.RateLimiter, cfg.Metrics)
	statistics := NewStatisticService(cfg.Store, aggregator, cfg.JWTManager)
	authSvc := NewAuthService(cfg.Authenticator, cfg.Store, cfg.JWTManager, slog.Default())
	calc := NewCalculatorService()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(cfg.Store))
		r.Route("/auth", authSvc.Routes)
		r.Route("/pledges", pledges.Routes)
		r.Route("/statistics", statistics.Routes)
		r.Route("/calculator", calc.Routes)
	})

	return r
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports whether the store answers a ping.
func healthHandler(store pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "ok"})
	}
}
