package handlers

import (
	"net/http"

	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/gin-gonic/gin"
)

// SettingsHandler handles organization settings and dashboard stats
type SettingsHandler struct {
	settingsService *services.SettingsService
	contactService  *services.ContactService
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(settingsService *services.SettingsService, contactService *services.ContactService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		contactService:  contactService,
	}
}

// Get returns the organization settings
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load settings")
		return
	}
	respondOK(c, settings)
}

// Update applies a partial settings change
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}
	if !user.IsCore() {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only core members can update settings")
		return
	}

	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	settings, err := h.settingsService.Save(req)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save settings")
		return
	}
	respondOK(c, settings)
}

// Stats returns per-status contact counts for the dashboard
// GET /api/stats
func (h *SettingsHandler) Stats(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	stats, err := h.contactService.Stats(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute stats")
		return
	}
	respondOK(c, stats)
}
