package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
)

// All /api/server-access routes are admin only at the route level;
// handlers here assume an admin caller.

// handleAccessList returns every grant with user and server summaries.
//
//	GET /api/server-access
func (s *Server) handleAccessList(c *gin.Context) {
	grants, err := s.store.ListAccess(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]AccessResponse, 0, len(grants))
	for i := range grants {
		out = append(out, accessResponse(&grants[i]))
	}
	c.JSON(http.StatusOK, gin.H{"grants": out, "count": len(out)})
}

// handleAccessCreate grants a user access to a server. Omitted flags
// take their defaults: view flags false, run flags true. Unknown user
// or server IDs yield 404; a duplicate pair 400.
//
//	POST /api/server-access
func (s *Server) handleAccessCreate(c *gin.Context) {
	var body struct {
		UserID            string `json:"user_id" binding:"required"`
		ServerID          string `json:"server_id" binding:"required"`
		CanViewPassword   *bool  `json:"can_view_password"`
		CanViewPrivateKey *bool  `json:"can_view_private_key"`
		CanRunSpeedTest   *bool  `json:"can_run_speed_test"`
		CanRunHealthCheck *bool  `json:"can_run_health_check"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and server_id are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetUser(ctx, body.UserID); err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := s.store.GetServer(ctx, body.ServerID); err != nil {
		s.respondError(c, err)
		return
	}

	grant := &models.ServerAccess{
		UserID:            body.UserID,
		ServerID:          body.ServerID,
		CanViewPassword:   body.CanViewPassword,
		CanViewPrivateKey: body.CanViewPrivateKey,
		CanRunSpeedTest:   body.CanRunSpeedTest,
		CanRunHealthCheck: body.CanRunHealthCheck,
	}
	if err := s.store.CreateAccess(ctx, grant); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("access granted",
		zap.String("grant_id", grant.ID),
		zap.String("user_id", grant.UserID),
		zap.String("server_id", grant.ServerID),
	)
	c.JSON(http.StatusCreated, accessResponse(grant))
}

// handleAccessGet returns one grant.
//
//	GET /api/server-access/:id
func (s *Server) handleAccessGet(c *gin.Context) {
	grant, err := s.store.GetAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accessResponse(grant))
}

// handleAccessUpdate edits the capability flags on a grant. Absent
// flags stay as they are.
//
//	PATCH /api/server-access/:id
func (s *Server) handleAccessUpdate(c *gin.Context) {
	var body struct {
		CanViewPassword   *bool `json:"can_view_password"`
		CanViewPrivateKey *bool `json:"can_view_private_key"`
		CanRunSpeedTest   *bool `json:"can_run_speed_test"`
		CanRunHealthCheck *bool `json:"can_run_health_check"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	grant, err := s.store.UpdateAccess(c.Request.Context(), c.Param("id"), store.AccessUpdate{
		CanViewPassword:   body.CanViewPassword,
		CanViewPrivateKey: body.CanViewPrivateKey,
		CanRunSpeedTest:   body.CanRunSpeedTest,
		CanRunHealthCheck: body.CanRunHealthCheck,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accessResponse(grant))
}

// handleAccessDelete revokes a grant.
//
//	DELETE /api/server-access/:id
func (s *Server) handleAccessDelete(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteAccess(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("access revoked", zap.String("grant_id", id))
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
