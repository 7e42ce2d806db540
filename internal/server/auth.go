// Package server provides the OpenFleet Gin-based REST API.
// All /api routes except login, register and the liveness probe require
// a valid JWT issued by /api/login; the middleware resolves the caller
// once per request and hands a fleet.Caller down to the engine.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vesaa/openfleet/internal/fleet"
	"github.com/vesaa/openfleet/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const callerKey = "caller"

// Claims is the payload embedded in every JWT issued by /api/login.
// Subject carries the user ID; the role is re-read from the database on
// every request, so a downgrade takes effect immediately.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// generateToken creates a signed HS256 JWT for the user.
func (s *Server) generateToken(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "openfleet",
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.TokenTTL) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// parseToken validates a token string and returns the claims.
func (s *Server) parseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// authMiddleware validates the Authorization header, loads the account
// and stores a fleet.Caller in the Gin context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := s.parseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		user, err := s.store.GetUser(c.Request.Context(), claims.Subject)
		if err != nil {
			// Token subject no longer exists (account deleted).
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(callerKey, fleet.Caller{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

// adminOnly rejects non-admin callers with 403. Must run after
// authMiddleware.
func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// callerFrom extracts the authenticated caller set by authMiddleware.
func callerFrom(c *gin.Context) fleet.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(fleet.Caller)
	return caller
}

// handleLogin accepts email + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "email": "...", "password": "..." }
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), body.Email)
	if err != nil {
		// Same response as a bad password; does not reveal whether the
		// account exists.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(body.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": s.cfg.TokenTTL * 3600, // seconds
		"type":       "Bearer",
		"user":       userResponse(user),
	})
}

// handleRegister self-registers a new USER account.
//
//	POST /api/register
func (s *Server) handleRegister(c *gin.Context) {
	if !s.cfg.OpenRegister {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is disabled"})
		return
	}

	var body struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and a password of at least 8 characters required"})
		return
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
		Role:           models.RoleUser,
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse(user))
}
