package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// handleUserList returns every account. Admin only (route-level).
//
//	GET /api/users
func (s *Server) handleUserList(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
}

// handleUserCreate lets an admin create an account with an explicit
// role, unlike /api/register which always creates a USER.
//
//	POST /api/users
func (s *Server) handleUserCreate(c *gin.Context) {
	var body struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and a password of at least 8 characters required"})
		return
	}

	role := models.RoleUser
	if body.Role != "" {
		role = models.Role(body.Role)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.cfg.BcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user := &models.User{
		Name:           body.Name,
		Email:          body.Email,
		HashedPassword: string(hash),
		Role:           role,
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusCreated, userResponse(user))
}

// handleUserGet returns one account. Admins may fetch anyone; everyone
// else only themselves.
//
//	GET /api/users/:id
func (s *Server) handleUserGet(c *gin.Context) {
	caller := callerFrom(c)
	id := c.Param("id")
	if !caller.IsAdmin() && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// handleUserUpdate patches name, email or password. Admins may edit
// anyone; everyone else only themselves. Role changes go through
// /users/:id/role so they cannot ride along on a profile edit.
//
//	PATCH /api/users/:id
func (s *Server) handleUserUpdate(c *gin.Context) {
	caller := callerFrom(c)
	id := c.Param("id")
	if !caller.IsAdmin() && caller.ID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	var body struct {
		Name     *string `json:"name"`
		Email    *string `json:"email" binding:"omitempty,email"`
		Password *string `json:"password" binding:"omitempty,min=8"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	upd := store.UserUpdate{Name: body.Name, Email: body.Email}
	if body.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), s.cfg.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		hashed := string(hash)
		upd.HashedPassword = &hashed
	}

	user, err := s.store.UpdateUser(c.Request.Context(), id, upd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// handleUserRole changes an account's role. Admin only (route-level).
// Downgrading the last admin is rejected by the store.
//
//	PATCH /api/users/:id/role
func (s *Server) handleUserRole(c *gin.Context) {
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	role := models.Role(body.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, err := s.store.UpdateUser(c.Request.Context(), c.Param("id"), store.UserUpdate{Role: &role})
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("user role changed", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, userResponse(user))
}

// handleUserDelete removes an account and its access grants. Admin only
// (route-level); deleting the last admin is rejected by the store.
//
//	DELETE /api/users/:id
func (s *Server) handleUserDelete(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteUser(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
