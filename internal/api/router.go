package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/fieldsense/internal/api/alerts"
	"github.com/good-yellow-bee/fieldsense/internal/api/devices"
	"github.com/good-yellow-bee/fieldsense/internal/api/middleware"
	"github.com/good-yellow-bee/fieldsense/internal/api/readings"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP, s.config.RateLimitBurst)
	s.stopLimiter = ipLimiter.Stop

	readingsHandler := readings.NewHandler(s.deps.Pipeline, s.deps.Readings, s.deps.Clock)
	alertsHandler := alerts.NewHandler(s.deps.History, s.deps.Cooldowns, s.deps.Clock)
	devicesHandler := devices.NewHandler(s.deps.Tokens, s.deps.Clock)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	// Device-facing routes kept at the root for existing firmware
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ipLimiter))
		r.Use(middleware.SensorToken(s.config.SensorToken))
		r.Get("/update", readingsHandler.Update)
		r.Post("/update", readingsHandler.Update)
	})
	r.Get("/data", readingsHandler.Data)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ipLimiter))
			r.Use(middleware.SensorToken(s.config.SensorToken))
			r.Post("/readings", readingsHandler.Ingest)

			r.Route("/devices/tokens", func(r chi.Router) {
				r.Get("/", devicesHandler.List)
				r.Post("/", devicesHandler.Register)
				r.Delete("/{token}", devicesHandler.Delete)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/history", alertsHandler.History)
			r.Get("/cooldowns", alertsHandler.Cooldowns)
		})

		r.Get("/weather", s.weatherStatus)
	})

	// Health check (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
