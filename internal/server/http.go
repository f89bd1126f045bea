package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scaffold/internal/docstore"
	"scaffold/internal/idempotency"
	"scaffold/internal/kv"
	"scaffold/internal/lock"
	"scaffold/internal/repository"
)

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options.
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)

	Tenant         string        // Tenant id scoping cache keys; empty means global
	RecordTTL      time.Duration // Single-record cache TTL
	ListTTL        time.Duration // List cache TTL
	IdempotencyTTL time.Duration // Recorded response TTL
	LockTTL        time.Duration // Idempotency lock TTL
}

// New creates a new HTTP server over the given cache store and contacts
// collection.
func New(store kv.Store, contacts docstore.Collection[Contact, *Contact], cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true

	repo := repository.New(ContactEntity, contacts, store, repository.Options{
		Tenant:    cfg.Tenant,
		RecordTTL: cfg.RecordTTL,
		ListTTL:   cfg.ListTTL,
	})
	handler := NewHandler(repo)
	locker := lock.New(store)

	// Global middleware stack (order matters)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Mutating routes get per-operation idempotency control.
	idem := func(operation string) echo.MiddlewareFunc {
		return idempotency.Middleware(operation, store, locker, idempotency.Options{
			TTL:     cfg.IdempotencyTTL,
			LockTTL: cfg.LockTTL,
		})
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	v1 := e.Group("/v1")
	v1.POST("/contacts", handler.CreateContact, idem("createContact"))
	v1.GET("/contacts", handler.ListContacts)
	v1.GET("/contacts/:id", handler.GetContact)
	v1.PUT("/contacts/:id", handler.UpdateContact, idem("updateContact"))
	v1.DELETE("/contacts/:id", handler.DeleteContact, idem("deleteContact"))

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
