// Package server provides the OpenFleet Gin-based REST API.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vesaa/openfleet/internal/config"
	"github.com/vesaa/openfleet/internal/fleet"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
)

// Server wires the HTTP layer to the store and the fleet engine.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	orch     *fleet.Orchestrator
	resolver *fleet.Resolver
	pinger   *fleet.Pinger
	logger   *zap.Logger
}

// New creates the API server.
func New(cfg *config.Config, st *store.Store, orch *fleet.Orchestrator, resolver *fleet.Resolver, pinger *fleet.Pinger, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		orch:     orch,
		resolver: resolver,
		pinger:   pinger,
		logger:   logger,
	}
}

// RegisterRoutes wires up the API on the given engine.
//
//	Public:          POST /api/login, POST /api/register, GET /api/health
//	Operational:     GET /metrics (Prometheus)
//	Protected (JWT): all other /api/* routes
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// ── Public endpoints ──────────────────────────────────────────────────────
	api.POST("/login", s.handleLogin)
	api.POST("/register", s.handleRegister)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	// ── JWT-protected endpoints ───────────────────────────────────────────────
	auth := api.Group("/", s.authMiddleware())
	{
		// Servers
		auth.GET("/servers", s.handleServerList)
		auth.GET("/servers/:id", s.handleServerGet)
		auth.POST("/servers", s.adminOnly(), s.handleServerCreate)
		auth.PATCH("/servers/:id", s.adminOnly(), s.handleServerUpdate)
		auth.DELETE("/servers/:id", s.adminOnly(), s.handleServerDelete)

		// Checks
		auth.POST("/servers/health-all", s.handleFleetHealthCheck)
		auth.POST("/servers/speedtest-all", s.handleFleetSpeedTest)
		auth.POST("/servers/:id/health", s.handleServerHealthCheck)
		auth.POST("/servers/:id/speedtest", s.handleServerSpeedTest)

		// Reachability + credential verification
		auth.GET("/servers/:id/ping", s.handleServerPing)
		auth.POST("/servers/:id/ssh-check", s.adminOnly(), s.handleServerSSHCheck)

		// History
		auth.GET("/servers/:id/metrics", s.handleServerMetrics)
		auth.GET("/servers/:id/speedtests", s.handleServerSpeedTests)

		// Users (admin, except self-service get/patch)
		auth.GET("/users", s.adminOnly(), s.handleUserList)
		auth.POST("/users", s.adminOnly(), s.handleUserCreate)
		auth.GET("/users/:id", s.handleUserGet)
		auth.PATCH("/users/:id", s.handleUserUpdate)
		auth.PATCH("/users/:id/role", s.adminOnly(), s.handleUserRole)
		auth.DELETE("/users/:id", s.adminOnly(), s.handleUserDelete)

		// Access grants (admin only)
		auth.GET("/server-access", s.adminOnly(), s.handleAccessList)
		auth.POST("/server-access", s.adminOnly(), s.handleAccessCreate)
		auth.GET("/server-access/:id", s.adminOnly(), s.handleAccessGet)
		auth.PATCH("/server-access/:id", s.adminOnly(), s.handleAccessUpdate)
		auth.DELETE("/server-access/:id", s.adminOnly(), s.handleAccessDelete)
	}
}

// respondError maps engine and store errors to HTTP responses. Internal
// detail is logged, never sent to the client.
func (s *Server) respondError(c *gin.Context, err error) {
	var perr *fleet.ProbeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, fleet.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, store.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
	case errors.Is(err, store.ErrDuplicateGrant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "access already exists"})
	case errors.Is(err, store.ErrLastAdmin):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot remove the last admin user"})
	case errors.As(err, &perr):
		// Single-server synchronous probe failure; the reason stays in
		// the log, the client gets a generic message.
		s.logger.Warn("probe failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reach server agent"})
	default:
		s.logger.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
