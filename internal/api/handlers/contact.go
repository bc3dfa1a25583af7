package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/gin-gonic/gin"
)

// ContactHandler handles contact CRUD and related requests
type ContactHandler struct {
	contactService *services.ContactService
	importService  *services.ImportService
}

// NewContactHandler creates a new ContactHandler instance
func NewContactHandler(contactService *services.ContactService, importService *services.ImportService) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		importService:  importService,
	}
}

// List returns the contacts visible to the caller
// GET /api/contacts
func (h *ContactHandler) List(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	contacts, err := h.contactService.ListForUser(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list contacts")
		return
	}
	respondOK(c, contacts)
}

// Get returns one contact with its correspondence history
// GET /api/contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	contactID, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid contact id")
		return
	}

	contact, err := h.contactService.GetByID(user, contactID)
	if err != nil {
		respondContactError(c, err)
		return
	}
	respondOK(c, contact)
}

// Create adds a new contact
// POST /api/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	var req services.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	contact, err := h.contactService.Create(user, req)
	if err != nil {
		if errors.Is(err, services.ErrContactExists) {
			respondError(c, http.StatusConflict, "ALREADY_EXISTS", "Contact with this email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create contact")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": contact})
}

// Update applies a partial profile edit
// PUT /api/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	contactID, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid contact id")
		return
	}

	var req services.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	contact, err := h.contactService.Update(user, contactID, req)
	if err != nil {
		respondContactError(c, err)
		return
	}
	respondOK(c, contact)
}

// Delete removes a contact
// DELETE /api/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	contactID, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid contact id")
		return
	}

	if err := h.contactService.Delete(user, contactID); err != nil {
		respondContactError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

// AssignRequest represents the assignment request body
type AssignRequest struct {
	AssigneeID uint `json:"assigneeId" binding:"required"`
}

// Assign hands a contact to a coordinator
// POST /api/contacts/:id/assign
func (h *ContactHandler) Assign(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	contactID, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid contact id")
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	contact, err := h.contactService.Assign(user, contactID, req.AssigneeID)
	if err != nil {
		respondContactError(c, err)
		return
	}
	respondOK(c, contact)
}

// Import loads contacts from an uploaded xlsx file
// POST /api/contacts/import
func (h *ContactHandler) Import(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "An xlsx file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
		return
	}
	defer file.Close()

	result, err := h.importService.ImportContacts(user, fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, services.ErrNoImportableRows) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "No importable rows found in the sheet")
			return
		}
		respondError(c, http.StatusBadRequest, "IMPORT_FAILED", err.Error())
		return
	}
	respondOK(c, result)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

func respondContactError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrContactNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Contact not found")
	case errors.Is(err, services.ErrAccessDenied):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Contact operation failed")
	}
}
