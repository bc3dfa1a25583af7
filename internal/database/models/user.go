package models

import (
	"time"
)

// User roles.
const (
	RoleCore        = "CORE"
	RoleCoordinator = "COORDINATOR"
)

// User represents a member of a placement team.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Name         string `gorm:"size:255" json:"name"`
	Role         string `gorm:"size:20;not null" json:"role"`
	TeamID       uint   `gorm:"index" json:"team_id"`
	// InvitationToken is set while the account awaits its first password and
	// cleared once setup completes.
	InvitationToken string    `gorm:"size:100;index" json:"-"`
	Enabled         bool      `gorm:"default:true" json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsCore reports whether the user has the team-wide CORE role.
func (u *User) IsCore() bool {
	return u.Role == RoleCore
}

// Team groups users and the contacts they own.
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
