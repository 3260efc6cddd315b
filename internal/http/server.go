// Package http provides the API and metrics servers and wires every route.
package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/consentbroker/internal/config"
	consentHTTP "github.com/allisson/consentbroker/internal/consent/http"
	delegationHTTP "github.com/allisson/consentbroker/internal/delegation/http"
	identityHTTP "github.com/allisson/consentbroker/internal/identity/http"
	identityService "github.com/allisson/consentbroker/internal/identity/service"
	manifestHTTP "github.com/allisson/consentbroker/internal/manifest/http"
	"github.com/allisson/consentbroker/internal/metrics"
)

// readinessTimeout bounds each readiness dependency check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Handlers groups the route handlers served by the API.
type Handlers struct {
	Application *consentHTTP.ApplicationHandler
	Consent     *consentHTTP.ConsentHandler
	Delegation  *delegationHTTP.DelegationHandler
	// Manifest is nil when this deployment publishes no capability manifest.
	Manifest *manifestHTTP.ManifestHandler
}

// Server represents the API HTTP server.
type Server struct {
	db      *sql.DB
	server  *http.Server
	router  *gin.Engine
	logger  *slog.Logger
	checks  map[string]ReadinessCheck
	ordered []string
}

// NewServer creates a new API server. Call SetupRouter before Start.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		checks: make(map[string]ReadinessCheck),
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// AddReadinessCheck registers an extra dependency reported by /ready.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	if _, exists := s.checks[name]; !exists {
		s.ordered = append(s.ordered, name)
	}
	s.checks[name] = check
}

// SetupRouter builds the Gin engine with middleware and every route.
//
// Registry and revocation routes are guarded by cfg.AdminAudience when it is set.
// Consent grant and check stay reachable for service-to-service calls. Delegated
// calls and consent decisions always require a verified user token.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	handlers Handlers,
	verifier identityService.TokenVerifier,
	meterProvider metric.MeterProvider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if cfg.MetricsEnabled && meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	if handlers.Manifest != nil {
		router.GET(manifestHTTP.ManifestPath, handlers.Manifest.GetHandler)
	}

	authenticate := identityHTTP.AuthenticationMiddleware(verifier, s.logger)

	v1 := router.Group("/v1")

	admin := v1.Group("")
	if cfg.AdminAudience != "" {
		admin.Use(authenticate, identityHTTP.RequireAudience(cfg.AdminAudience, s.logger))
	}

	if handlers.Application != nil {
		applications := admin.Group("/applications")
		applications.POST("", handlers.Application.CreateHandler)
		applications.GET("", handlers.Application.ListHandler)
		applications.GET("/:id", handlers.Application.GetHandler)
		applications.DELETE("/:id", handlers.Application.DeleteHandler)
		applications.PUT("/:id/capabilities", handlers.Application.AddCapabilityHandler)
		applications.GET("/:id/capabilities", handlers.Application.ListCapabilitiesHandler)
		applications.DELETE("/:id/capabilities/:capability", handlers.Application.RemoveCapabilityHandler)
	}

	if handlers.Consent != nil {
		v1.POST("/consent", handlers.Consent.GrantHandler)
		v1.GET("/consent/check", handlers.Consent.CheckHandler)
		v1.POST("/consent/check", handlers.Consent.CheckHandler)

		admin.GET("/consent/users/:user_id", handlers.Consent.ListForUserHandler)
		admin.DELETE("/consent/users/:user_id", handlers.Consent.RevokeAllForUserHandler)
		admin.DELETE("/consent/users/:user_id/capability", handlers.Consent.RevokeHandler)
		admin.DELETE("/consent/all", handlers.Consent.RevokeAllHandler)
	}

	if handlers.Delegation != nil {
		v1.POST("/consent/decisions", authenticate, handlers.Delegation.DecisionHandler)

		delegate := v1.Group("/delegate", authenticate)
		if cfg.RateLimitEnabled {
			delegate.Use(identityHTTP.RateLimitMiddleware(
				ctx,
				cfg.RateLimitRequestsPerSec,
				cfg.RateLimitBurst,
				s.logger,
			))
		}
		delegate.Any("/:destination/*path", handlers.Delegation.DelegateHandler)
	}

	s.router = router
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return errors.New("router is not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// GetHandler returns the configured router for in-process testing.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
// GET /health
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the database and every registered dependency
// answer within readinessTimeout.
// GET /ready
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	ready := true
	components := make(map[string]string, len(s.checks)+1)

	if s.db == nil || s.db.PingContext(ctx) != nil {
		ready = false
		components["database"] = "error"
	} else {
		components["database"] = "ok"
	}

	for _, name := range s.ordered {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
			ready = false
			components[name] = "error"
			continue
		}
		components[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
