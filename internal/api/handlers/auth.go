package handlers

import (
	"errors"
	"net/http"

	"github.com/beingkumara/placement-pitcher/internal/api/middleware"
	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/gin-gonic/gin"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    uint   `json:"user_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	TeamID    uint   `json:"team_id"`
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	userService *services.UserService
	jwtManager  *middleware.JWTManager
	logService  *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, jwtManager *middleware.JWTManager, logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
		logService:  logService,
	}
}

// Login handles user login requests
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logService.LogLogin(0, req.Email, c.ClientIP(), false, err)
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid email or password")
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Email, user.Name, user.Role, user.TeamID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	h.logService.LogLogin(user.ID, req.Email, c.ClientIP(), true, nil)

	respondOK(c, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		TeamID:    user.TeamID,
	})
}

// GetCurrentUser returns the current authenticated user info
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	user, err := h.userService.GetByID(userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	respondOK(c, gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"role":    user.Role,
		"team_id": user.TeamID,
	})
}

// SetupAccountRequest represents the invitation acceptance body
type SetupAccountRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// SetupAccount consumes an invitation token and activates the account
// POST /api/setup-account
func (h *AuthHandler) SetupAccount(c *gin.Context) {
	var req SetupAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.userService.SetupAccount(req.Token, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInvitation) {
			respondError(c, http.StatusBadRequest, "INVALID_INVITATION", "Invalid or expired invitation token")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to set up account")
		return
	}

	respondOK(c, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}
