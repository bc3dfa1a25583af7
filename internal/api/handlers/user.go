package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/gin-gonic/gin"
)

// UserHandler handles team membership and admin bootstrap requests
type UserHandler struct {
	userService *services.UserService
	adminSecret string
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(userService *services.UserService, adminSecret string) *UserHandler {
	return &UserHandler{
		userService: userService,
		adminSecret: adminSecret,
	}
}

// List returns the caller's team members
// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	users, err := h.userService.ListTeam(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list team members")
		return
	}
	respondOK(c, users)
}

// InviteRequest represents the coordinator invitation body
type InviteRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// Invite creates a coordinator invitation in the caller's team
// POST /api/users/invite
func (h *UserHandler) Invite(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	invited, err := h.userService.CreateCoordinator(user, req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccessDenied):
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Only core members can invite coordinators")
		case errors.Is(err, services.ErrUserExists):
			respondError(c, http.StatusConflict, "ALREADY_EXISTS", "User with this email already exists")
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create invitation")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{
		"id":    invited.ID,
		"email": invited.Email,
		"name":  invited.Name,
	}})
}

// CreateCoreRequest represents the admin bootstrap body
type CreateCoreRequest struct {
	TeamName string `json:"teamName" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// CreateCore bootstraps a new team with its first core member. Guarded by
// the admin secret header rather than a JWT.
// POST /api/admin/create-core
func (h *UserHandler) CreateCore(c *gin.Context) {
	secret := c.GetHeader("X-Admin-Secret")
	if h.adminSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.adminSecret)) != 1 {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid admin secret")
		return
	}

	var req CreateCoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.userService.CreateCoreWithTeam(req.TeamName, req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			respondError(c, http.StatusConflict, "ALREADY_EXISTS", "User with this email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create core member")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{
		"id":      user.ID,
		"email":   user.Email,
		"team_id": user.TeamID,
	}})
}
