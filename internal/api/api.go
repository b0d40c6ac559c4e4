// Package api provides the HTTP ingestion and operator API server.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/api/health"
	"github.com/good-yellow-bee/fieldsense/internal/api/readings"
	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/storage"
	"github.com/good-yellow-bee/fieldsense/internal/weather"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address         string
	SensorToken     string // Shared secret for field devices; empty disables the check
	HTTPTLSEnabled  bool   // Enable HTTPS for API server
	HTTPTLSCertFile string // HTTPS certificate file
	HTTPTLSKeyFile  string // HTTPS private key file
	RateLimitPerIP  int    // Ingestion requests per minute per client IP
	RateLimitBurst  int
	Verbose         bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 120
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 30
	}
}

// Deps are the collaborators served by the API.
type Deps struct {
	Pipeline  readings.Processor
	Readings  *readings.Store
	History   storage.AlertHistoryRepository
	Tokens    storage.DeviceTokenRepository
	Cooldowns *alerting.CooldownStore
	Weather   *weather.Cache
	Clock     clock.Clock
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	deps          Deps
	server        *http.Server
	healthHandler *health.Handler
	stopLimiter   func()
}

// New creates a new API server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.History == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("storage repositories are required")
	}
	if deps.Cooldowns == nil {
		return nil, fmt.Errorf("cooldown store is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Readings == nil {
		deps.Readings = readings.NewStore()
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		deps:          deps,
		healthHandler: health.NewHandler(),
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.WithComponent("api")
	errChan := make(chan error, 1)

	go func() {
		log.Info().Str("address", ln.Addr().String()).Bool("tls", s.config.HTTPTLSEnabled).Msg("HTTP API listening")
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ServeTLS(ln, s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP API server")
		if s.stopLimiter != nil {
			s.stopLimiter()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
