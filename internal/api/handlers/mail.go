package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/gin-gonic/gin"
)

// MailHandler handles draft generation, dispatch, and reply checking
type MailHandler struct {
	draftService   *services.DraftService
	mailerService  *services.MailerService
	replyService   *services.ReplyService
	contactService *services.ContactService
	logService     *services.LogService
}

// NewMailHandler creates a new MailHandler instance
func NewMailHandler(draftService *services.DraftService, mailerService *services.MailerService, replyService *services.ReplyService, contactService *services.ContactService, logService *services.LogService) *MailHandler {
	return &MailHandler{
		draftService:   draftService,
		mailerService:  mailerService,
		replyService:   replyService,
		contactService: contactService,
		logService:     logService,
	}
}

// GenerateDraft produces a subject/body draft for a contact
// POST /api/contacts/:id/generate-email
func (h *MailHandler) GenerateDraft(c *gin.Context) {
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

	// Visibility check before generation.
	if _, err := h.contactService.GetByID(user, contactID); err != nil {
		respondContactError(c, err)
		return
	}

	draft, err := h.draftService.GenerateDraft(user.ID, contactID)
	if err != nil {
		if errors.Is(err, services.ErrAllProvidersFailed) {
			respondError(c, http.StatusBadGateway, "ALL_PROVIDERS_FAILED", "Every draft provider failed; try again later")
			return
		}
		if errors.Is(err, services.ErrContactNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Contact not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Draft generation failed")
		return
	}
	respondOK(c, draft)
}

// SendEmail transmits a message to a contact. Multipart form fields: to,
// subject, body, inReplyTo (optional), attachments (repeated file field).
// POST /api/send-email
func (h *MailHandler) SendEmail(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	to := c.PostForm("to")
	subject := c.PostForm("subject")
	body := c.PostForm("body")
	inReplyTo := c.PostForm("inReplyTo")
	if to == "" || subject == "" || body == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "to, subject, and body are required")
		return
	}

	var attachments []services.Attachment
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fileHeader := range form.File["attachments"] {
			file, err := fileHeader.Open()
			if err != nil {
				// One unreadable attachment is skipped, not fatal.
				h.logService.LogWarn(user.ID, models.LogModuleMail, "attachment", "Skipping unreadable attachment", map[string]interface{}{
					"filename": fileHeader.Filename,
					"error":    err.Error(),
				})
				continue
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				h.logService.LogWarn(user.ID, models.LogModuleMail, "attachment", "Skipping unreadable attachment", map[string]interface{}{
					"filename": fileHeader.Filename,
					"error":    err.Error(),
				})
				continue
			}
			attachments = append(attachments, services.Attachment{
				Filename: fileHeader.Filename,
				Content:  content,
			})
		}
	}

	if err := h.mailerService.Send(user, to, subject, body, attachments, inReplyTo); err != nil {
		switch {
		case errors.Is(err, services.ErrContactNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "No contact in your team matches this email")
		case errors.Is(err, services.ErrTransportUnavailable):
			respondError(c, http.StatusBadGateway, "TRANSPORT_UNAVAILABLE", "Mail transport is unavailable; nothing was sent")
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send email")
		}
		return
	}
	respondOK(c, gin.H{"sent": true})
}

// CheckReplies runs one on-demand poll cycle
// POST /api/check-replies
func (h *MailHandler) CheckReplies(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	if err := h.replyService.PollOnce(context.Background()); err != nil {
		switch {
		case errors.Is(err, services.ErrMailboxMisconfigured):
			respondError(c, http.StatusBadRequest, "MAILBOX_MISCONFIGURED", "Reply mailbox is not configured")
		case errors.Is(err, services.ErrMailboxUnreachable):
			respondError(c, http.StatusBadGateway, "MAILBOX_UNREACHABLE", "Reply mailbox is unreachable")
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Reply check failed")
		}
		return
	}
	respondOK(c, gin.H{"checked": true})
}

// SentMail returns the team's outbound history, newest first
// GET /api/sent-emails
func (h *MailHandler) SentMail(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	entries, err := h.contactService.SentMail(user, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sent mail")
		return
	}
	respondOK(c, entries)
}
