package handlers

import (
	"net/http"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/gin-gonic/gin"
)

// respondOK writes the standard success envelope.
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondValidation reports a malformed request body.
func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request body",
			"details": err.Error(),
		},
	})
}

// userFromContext rebuilds the acting user from the JWT claims placed in
// the context by the auth middleware.
func userFromContext(c *gin.Context) (*models.User, bool) {
	id, exists := c.Get("user_id")
	if !exists {
		return nil, false
	}
	userID, ok := id.(uint)
	if !ok {
		return nil, false
	}

	user := &models.User{ID: userID}
	if v, ok := c.Get("email"); ok {
		user.Email, _ = v.(string)
	}
	if v, ok := c.Get("name"); ok {
		user.Name, _ = v.(string)
	}
	if v, ok := c.Get("role"); ok {
		user.Role, _ = v.(string)
	}
	if v, ok := c.Get("team_id"); ok {
		user.TeamID, _ = v.(uint)
	}
	return user, true
}
