package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/openfleet/internal/fleet"
)

// handleFleetHealthCheck runs a health probe across every server the
// caller may check and returns the run summary.
//
// The run is detached from request cancellation: a fleet run always
// proceeds to completion once started, so a client disconnect cannot
// abort in-flight probes and flip unprobed servers to INACTIVE.
//
//	POST /api/servers/health-all
func (s *Server) handleFleetHealthCheck(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	summary, err := s.orch.RunFleetCheck(ctx, callerFrom(c), fleet.KindHealth)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleFleetSpeedTest runs a speed test across every server the caller
// may test. Detached from request cancellation like the health run;
// speed tests run minutes, so client timeouts mid-run are routine.
//
//	POST /api/servers/speedtest-all
func (s *Server) handleFleetSpeedTest(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	summary, err := s.orch.RunFleetCheck(ctx, callerFrom(c), fleet.KindSpeedTest)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleServerHealthCheck probes one server synchronously and returns
// the persisted metric together with the agent's detailed reading.
//
//	POST /api/servers/:id/health
func (s *Server) handleServerHealthCheck(c *gin.Context) {
	metric, reading, err := s.orch.RunHealthCheck(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"health_metric":  metric,
		"health_details": reading,
	})
}

// handleServerSpeedTest runs one synchronous speed test.
//
//	POST /api/servers/:id/speedtest
func (s *Server) handleServerSpeedTest(c *gin.Context) {
	result, err := s.orch.RunSpeedTest(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speed_test": result})
}

// handleServerPing checks ICMP reachability of the server address. Any
// caller who can see the server may ping it; no capability flag guards
// it because it touches the host, not the agent or credentials.
//
//	GET /api/servers/:id/ping
func (s *Server) handleServerPing(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	_, ok, err := s.resolver.ResolveServer(ctx, callerFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	srv, err := s.store.GetServer(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.pinger.Ping(ctx, srv.IP)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleServerSSHCheck verifies the stored SSH credentials by opening a
// session and running a trivial command. Admin only (route-level);
// credentials never leave the server side.
//
//	POST /api/servers/:id/ssh-check
func (s *Server) handleServerSSHCheck(c *gin.Context) {
	ctx := c.Request.Context()

	srv, err := s.store.GetServer(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	result := s.sshCheck(ctx, srv)
	c.JSON(http.StatusOK, result)
}

// historyLimit parses the ?limit= query parameter. Absent or invalid
// values fall back to def; limit=0 means the full history.
func historyLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// handleServerMetrics returns the health metric history, newest first.
//
//	GET /api/servers/:id/metrics?limit=50
func (s *Server) handleServerMetrics(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	_, ok, err := s.resolver.ResolveServer(ctx, callerFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	metrics, err := s.store.ListHealthMetrics(ctx, id, historyLimit(c, 50))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics, "count": len(metrics)})
}

// handleServerSpeedTests returns the speed-test history, newest first.
//
//	GET /api/servers/:id/speedtests?limit=50
func (s *Server) handleServerSpeedTests(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	_, ok, err := s.resolver.ResolveServer(ctx, callerFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	tests, err := s.store.ListSpeedTests(ctx, id, historyLimit(c, 50))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speed_tests": tests, "count": len(tests)})
}
