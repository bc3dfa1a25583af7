package models

import (
	"time"
)

// Contact status values. The status is an advisory label describing the
// latest known interaction stage, not a strict workflow guard.
const (
	StatusPending       = "Pending"
	StatusGenerated     = "Generated"
	StatusSent          = "Sent"
	StatusReplyReceived = "Reply Received"
)

// Contact represents a company contact a placement team corresponds with.
type Contact struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// CompanyName is the primary field. LegacyCompanyName holds values
	// written by an earlier importer under a different column; it is only
	// read as a fallback when CompanyName is empty.
	CompanyName       string `gorm:"size:255" json:"company_name"`
	LegacyCompanyName string `gorm:"column:legacy_company_name;size:255" json:"-"`

	HRName   string `gorm:"size:255" json:"hr_name"`
	Email    string `gorm:"size:255;index" json:"email"`
	Phone    string `gorm:"size:100" json:"phone"`
	LinkedIn string `gorm:"size:500" json:"linkedin"`
	Status   string `gorm:"size:50;index;default:'Pending'" json:"status"`
	Context  string `gorm:"type:text" json:"context"`

	CreatedByID  uint `gorm:"index" json:"created_by_id"`
	AssignedToID *uint `gorm:"index" json:"assigned_to_id"`
	TeamID       uint `gorm:"index;not null" json:"team_id"`

	// AssignedToName is resolved at read time, never stored.
	AssignedToName string `gorm:"-" json:"assigned_to_name,omitempty"`

	// Append-only correspondence history. Only the dispatch and poll paths
	// may add entries; nothing deletes them.
	SentEmails []SentEmail  `gorm:"foreignKey:ContactID" json:"sent_emails,omitempty"`
	Replies    []EmailReply `gorm:"foreignKey:ContactID" json:"replies,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveCompanyName returns the primary company name, falling back to the
// legacy column when the primary is empty. First non-empty wins.
func (c *Contact) EffectiveCompanyName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.LegacyCompanyName
}

// SentEmail is one outbound message recorded against a contact.
type SentEmail struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ContactID uint      `gorm:"index;not null" json:"contact_id"`
	Subject   string    `gorm:"size:500" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	SentAt    time.Time `gorm:"index" json:"sent_at"`
	// MessageID is the thread id placed on the transmitted message; replies
	// threaded by mail clients echo it back via In-Reply-To.
	MessageID       string `gorm:"size:255" json:"message_id"`
	AttachmentNames string `gorm:"size:1000" json:"attachment_names"`
}

// EmailReply is one inbound reply recorded against a contact.
type EmailReply struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContactID  uint      `gorm:"index;not null" json:"contact_id"`
	Subject    string    `gorm:"size:500" json:"subject"`
	Body       string    `gorm:"type:text" json:"body"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	FromEmail  string    `gorm:"size:255" json:"from_email"`
	// MessageID is the Message-ID header of the source message, empty when
	// the message carried none.
	MessageID string `gorm:"size:255" json:"message_id"`
}
