package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/good-yellow-bee/homewatch/internal/api/alerts"
	"github.com/good-yellow-bee/homewatch/internal/api/auth"
	"github.com/good-yellow-bee/homewatch/internal/api/middleware"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(s.config.RateLimit)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if len(s.config.JWTSecret) > 0 {
			jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
			r.Use(middleware.JWTAuth(jwtService))
		} else {
			r.Use(middleware.LocalAuth())
		}
		r.Use(middleware.RateLimitByActor(limiter))

		r.Route("/security", func(r chi.Router) {
			handler := alerts.NewHandler(s.service, s.storage.Events())

			r.Get("/status", handler.Status)
			r.Get("/events", handler.ListEvents)
			r.Post("/alerts/acknowledge", handler.AcknowledgeAll)
			r.Post("/alerts/{id}/acknowledge", handler.Acknowledge)
		})
	})

	// Operational endpoints (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
