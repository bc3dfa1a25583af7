package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrContactExists indicates a contact with the same email already exists in the team
	ErrContactExists = errors.New("contact with this email already exists")
	// ErrAccessDenied indicates the user may not touch this contact
	ErrAccessDenied = errors.New("access denied")
)

// ContactService manages contact records. Correspondence history is
// written only by the mailer and reply services; this service owns the
// profile fields.
type ContactService struct {
	db         *gorm.DB
	mailer     *MailerService
	logService *LogService
}

// NewContactService creates a new ContactService instance
func NewContactService(db *gorm.DB, mailer *MailerService, logService *LogService) *ContactService {
	return &ContactService{
		db:         db,
		mailer:     mailer,
		logService: logService,
	}
}

// ListForUser returns the contacts visible to the user. Core members see
// the whole team; coordinators see contacts they created or own.
func (s *ContactService) ListForUser(user *models.User) ([]models.Contact, error) {
	query := s.db.Preload("SentEmails").Preload("Replies").Where("team_id = ?", user.TeamID)
	if !user.IsCore() {
		query = query.Where("assigned_to_id = ? OR created_by_id = ?", user.ID, user.ID)
	}

	var contacts []models.Contact
	if err := query.Order("created_at DESC").Find(&contacts).Error; err != nil {
		return nil, err
	}

	for i := range contacts {
		s.normalizeCompanyName(&contacts[i])
	}
	s.populateAssigneeNames(contacts)

	return contacts, nil
}

// GetByID returns one contact if the user may see it.
func (s *ContactService) GetByID(user *models.User, contactID uint) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.Preload("SentEmails").Preload("Replies").First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.verifyAccess(user, &contact); err != nil {
		return nil, err
	}

	s.normalizeCompanyName(&contact)
	if contact.AssignedToID != nil {
		var assignee models.User
		if err := s.db.First(&assignee, *contact.AssignedToID).Error; err == nil {
			contact.AssignedToName = assignee.Name
		}
	}
	return &contact, nil
}

// CreateContactRequest carries the profile fields for a new contact.
type CreateContactRequest struct {
	CompanyName string `json:"companyName" binding:"required"`
	HRName      string `json:"hrName"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
	LinkedIn    string `json:"linkedin"`
	Context     string `json:"context"`
}

// Create adds a contact in status Pending. Coordinators own what they
// create; core members leave it unassigned.
func (s *ContactService) Create(user *models.User, req CreateContactRequest) (*models.Contact, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.Model(&models.Contact{}).
		Where("team_id = ? AND LOWER(email) = ?", user.TeamID, email).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrContactExists
	}

	contact := &models.Contact{
		CompanyName: strings.TrimSpace(req.CompanyName),
		HRName:      strings.TrimSpace(req.HRName),
		Email:       email,
		Phone:       strings.TrimSpace(req.Phone),
		LinkedIn:    strings.TrimSpace(req.LinkedIn),
		Context:     strings.TrimSpace(req.Context),
		Status:      models.StatusPending,
		TeamID:      user.TeamID,
		CreatedByID: user.ID,
	}
	if !user.IsCore() {
		contact.AssignedToID = &user.ID
	}

	if err := s.db.Create(contact).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(user.ID, models.LogModuleContact, "create", "Contact created", map[string]interface{}{
		"contact_id": contact.ID,
		"company":    contact.CompanyName,
	})
	return contact, nil
}

// UpdateContactRequest carries optional profile updates. Nil fields are
// left untouched.
type UpdateContactRequest struct {
	CompanyName *string `json:"companyName"`
	HRName      *string `json:"hrName"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	LinkedIn    *string `json:"linkedin"`
	Context     *string `json:"context"`
	// Status is advisory; callers may set any stage label, e.g. marking a
	// contact Generated after drafting.
	Status *string `json:"status"`
}

// Update applies a partial profile edit.
func (s *ContactService) Update(user *models.User, contactID uint, req UpdateContactRequest) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.verifyAccess(user, &contact); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.CompanyName != nil {
		updates["company_name"] = strings.TrimSpace(*req.CompanyName)
	}
	if req.HRName != nil {
		updates["hr_name"] = strings.TrimSpace(*req.HRName)
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.LinkedIn != nil {
		updates["linked_in"] = strings.TrimSpace(*req.LinkedIn)
	}
	if req.Context != nil {
		updates["context"] = strings.TrimSpace(*req.Context)
	}
	if req.Status != nil {
		updates["status"] = strings.TrimSpace(*req.Status)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&contact).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &contact, nil
}

// Delete removes a contact and its correspondence history.
func (s *ContactService) Delete(user *models.User, contactID uint) error {
	var contact models.Contact
	err := s.db.First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrContactNotFound
	}
	if err != nil {
		return err
	}
	if err := s.verifyAccess(user, &contact); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", contactID).Delete(&models.SentEmail{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", contactID).Delete(&models.EmailReply{}).Error; err != nil {
			return err
		}
		return tx.Delete(&contact).Error
	})
}

// Assign hands a contact to a coordinator and notifies them by email.
// Notification failure does not fail the assignment.
func (s *ContactService) Assign(user *models.User, contactID, assigneeID uint) (*models.Contact, error) {
	if !user.IsCore() {
		return nil, ErrAccessDenied
	}

	var contact models.Contact
	err := s.db.First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	if contact.TeamID != user.TeamID {
		return nil, ErrAccessDenied
	}

	var assignee models.User
	if err := s.db.Where("id = ? AND team_id = ?", assigneeID, user.TeamID).First(&assignee).Error; err != nil {
		return nil, fmt.Errorf("assignee not found")
	}

	if err := s.db.Model(&contact).Update("assigned_to_id", assigneeID).Error; err != nil {
		return nil, err
	}
	contact.AssignedToID = &assigneeID
	contact.AssignedToName = assignee.Name

	if s.mailer != nil {
		subject := "New contact assigned: " + contact.EffectiveCompanyName()
		body := fmt.Sprintf("Hi %s,\n\nYou have been assigned the contact %s (%s) at %s.\n\nPlease follow up from the dashboard.",
			assignee.Name, contact.HRName, contact.Email, contact.EffectiveCompanyName())
		if err := s.mailer.SendSystemEmail(assignee.Email, subject, body); err != nil {
			s.logService.LogWarn(user.ID, models.LogModuleContact, "assign_notify", "Assignment notification failed", map[string]interface{}{
				"contact_id": contact.ID,
				"assignee":   assignee.Email,
				"error":      err.Error(),
			})
		}
	}

	s.logService.LogInfo(user.ID, models.LogModuleContact, "assign", "Contact assigned", map[string]interface{}{
		"contact_id":  contact.ID,
		"assignee_id": assigneeID,
	})
	return &contact, nil
}

// DashboardStats summarizes a team's outreach pipeline by status.
type DashboardStats struct {
	Total         int64 `json:"total"`
	Pending       int64 `json:"pending"`
	Generated     int64 `json:"generated"`
	Sent          int64 `json:"sent"`
	ReplyReceived int64 `json:"replyReceived"`
}

// Stats returns per-status contact counts scoped like ListForUser.
func (s *ContactService) Stats(user *models.User) (*DashboardStats, error) {
	scope := func() *gorm.DB {
		q := s.db.Model(&models.Contact{}).Where("team_id = ?", user.TeamID)
		if !user.IsCore() {
			q = q.Where("assigned_to_id = ? OR created_by_id = ?", user.ID, user.ID)
		}
		return q
	}

	stats := &DashboardStats{}
	if err := scope().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	counts := []struct {
		status string
		dst    *int64
	}{
		{models.StatusPending, &stats.Pending},
		{models.StatusGenerated, &stats.Generated},
		{models.StatusSent, &stats.Sent},
		{models.StatusReplyReceived, &stats.ReplyReceived},
	}
	for _, c := range counts {
		if err := scope().Where("status = ?", c.status).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// SentMailEntry is one row of the team's outbound history view.
type SentMailEntry struct {
	ContactID   uint      `json:"contactId"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	Subject     string    `json:"subject"`
	SentAt      time.Time `json:"sentAt"`
	MessageID   string    `json:"messageId"`
}

// SentMail returns the team's outbound messages, newest first.
func (s *ContactService) SentMail(user *models.User, limit int) ([]SentMailEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	contacts, err := s.ListForUser(user)
	if err != nil {
		return nil, err
	}

	var entries []SentMailEntry
	for _, contact := range contacts {
		for _, sent := range contact.SentEmails {
			entries = append(entries, SentMailEntry{
				ContactID:   contact.ID,
				CompanyName: contact.EffectiveCompanyName(),
				Email:       contact.Email,
				Subject:     sent.Subject,
				SentAt:      sent.SentAt,
				MessageID:   sent.MessageID,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SentAt.After(entries[j].SentAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// verifyAccess checks team scope, plus ownership for coordinators.
func (s *ContactService) verifyAccess(user *models.User, contact *models.Contact) error {
	if contact.TeamID != user.TeamID {
		return ErrContactNotFound
	}
	if user.IsCore() {
		return nil
	}
	if contact.CreatedByID == user.ID {
		return nil
	}
	if contact.AssignedToID != nil && *contact.AssignedToID == user.ID {
		return nil
	}
	return ErrAccessDenied
}

// normalizeCompanyName reads through the legacy field and opportunistically
// backfills the primary one.
func (s *ContactService) normalizeCompanyName(contact *models.Contact) {
	if contact.CompanyName != "" || contact.LegacyCompanyName == "" {
		return
	}
	contact.CompanyName = contact.LegacyCompanyName
	if err := s.db.Model(&models.Contact{}).Where("id = ?", contact.ID).
		Update("company_name", contact.CompanyName).Error; err != nil {
		s.logService.LogWarn(0, models.LogModuleContact, "normalize", "Company name backfill failed", map[string]interface{}{
			"contact_id": contact.ID,
			"error":      err.Error(),
		})
	}
}

// populateAssigneeNames fills the transient AssignedToName field.
func (s *ContactService) populateAssigneeNames(contacts []models.Contact) {
	ids := make([]uint, 0, len(contacts))
	for _, c := range contacts {
		if c.AssignedToID != nil {
			ids = append(ids, *c.AssignedToID)
		}
	}
	if len(ids) == 0 {
		return
	}

	var users []models.User
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for i := range contacts {
		if contacts[i].AssignedToID != nil {
			contacts[i].AssignedToName = names[*contacts[i].AssignedToID]
		}
	}
}
