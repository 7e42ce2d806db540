package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
)

// optionalString distinguishes a JSON field that was absent from one
// set to null: Set is true whenever the key appeared, and Value stays
// nil for an explicit null. A plain *string cannot tell the two apart,
// which would make nullable columns impossible to clear.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// historyDetailLimit caps the embedded history on the detail endpoint;
// the dedicated history endpoints page further back.
const historyDetailLimit = 10

// handleServerList returns the servers the caller can see, each with
// its most recent health metric and speed test. Admins see the whole
// fleet; other callers only servers with an access grant.
//
//	GET /api/servers
func (s *Server) handleServerList(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerFrom(c)

	servers, err := s.store.ListServers(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}

	perms, err := s.resolver.Resolve(ctx, caller, servers)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make([]ServerResponse, 0, len(servers))
	for i := range servers {
		srv := &servers[i]
		p, ok := perms[srv.ID]
		if !ok {
			continue
		}
		resp := serverResponse(srv, p)
		if metrics, err := s.store.ListHealthMetrics(ctx, srv.ID, 1); err == nil && len(metrics) > 0 {
			resp.LatestHealthMetric = &metrics[0]
		}
		if tests, err := s.store.ListSpeedTests(ctx, srv.ID, 1); err == nil && len(tests) > 0 {
			resp.LatestSpeedTest = &tests[0]
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"servers": out, "count": len(out)})
}

// handleServerGet returns one server with recent history embedded.
// Non-admin callers need an access grant; without one the server is
// invisible and the response is 403.
//
//	GET /api/servers/:id
func (s *Server) handleServerGet(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerFrom(c)
	id := c.Param("id")

	perms, ok, err := s.resolver.ResolveServer(ctx, caller, id)
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

	resp := serverResponse(srv, perms)
	if metrics, err := s.store.ListHealthMetrics(ctx, id, historyDetailLimit); err == nil {
		resp.HealthMetrics = metrics
		if len(metrics) > 0 {
			resp.LatestHealthMetric = &metrics[0]
		}
	}
	if tests, err := s.store.ListSpeedTests(ctx, id, historyDetailLimit); err == nil {
		resp.SpeedTests = tests
		if len(tests) > 0 {
			resp.LatestSpeedTest = &tests[0]
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleServerCreate registers a new server. Admin only (route-level).
//
//	POST /api/servers
func (s *Server) handleServerCreate(c *gin.Context) {
	var body struct {
		Name       string  `json:"name" binding:"required"`
		IP         string  `json:"ip" binding:"required"`
		Country    string  `json:"country" binding:"required"`
		Domain     *string `json:"domain"`
		Username   *string `json:"username"`
		Password   *string `json:"password"`
		PrivateKey *string `json:"private_key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, ip and country are required"})
		return
	}

	srv := &models.Server{
		Name:       body.Name,
		IP:         body.IP,
		Country:    body.Country,
		Domain:     body.Domain,
		Username:   body.Username,
		Password:   body.Password,
		PrivateKey: body.PrivateKey,
	}
	if err := s.store.CreateServer(c.Request.Context(), srv); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("server created", zap.String("server_id", srv.ID), zap.String("name", srv.Name))
	c.JSON(http.StatusCreated, serverResponse(srv, models.AdminPermissions()))
}

// handleServerUpdate patches server fields. Absent fields stay as they
// are; an explicit null clears a nullable field back to NULL. Admin
// only (route-level).
//
//	PATCH /api/servers/:id
func (s *Server) handleServerUpdate(c *gin.Context) {
	var body struct {
		Name       *string        `json:"name"`
		IP         *string        `json:"ip"`
		Domain     optionalString `json:"domain"`
		Country    *string        `json:"country"`
		Username   optionalString `json:"username"`
		Password   optionalString `json:"password"`
		PrivateKey optionalString `json:"private_key"`
		Status     *string        `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	upd := store.ServerUpdate{
		Name:    body.Name,
		IP:      body.IP,
		Country: body.Country,
	}
	if body.Domain.Set {
		upd.Domain = &body.Domain.Value
	}
	if body.Username.Set {
		upd.Username = &body.Username.Value
	}
	if body.Password.Set {
		upd.Password = &body.Password.Value
	}
	if body.PrivateKey.Set {
		upd.PrivateKey = &body.PrivateKey.Value
	}
	if body.Status != nil {
		status := models.ServerStatus(*body.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		upd.Status = &status
	}

	srv, err := s.store.UpdateServer(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serverResponse(srv, models.AdminPermissions()))
}

// handleServerDelete removes a server and all its history and grants.
// Admin only (route-level).
//
//	DELETE /api/servers/:id
func (s *Server) handleServerDelete(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteServer(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("server deleted", zap.String("server_id", id))
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
