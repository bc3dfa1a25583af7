package models

import (
	"fmt"
)

// Settings is the single organization-level record consumed by draft
// generation. At most one row exists.
type Settings struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	TotalStudents int    `gorm:"default:0" json:"total_students"`
	PlacedInterns int    `gorm:"default:0" json:"placed_interns"`
	SecuredPPO    int    `gorm:"default:0" json:"secured_ppo"`
	BrochureURL   string `gorm:"size:1000" json:"brochure_url"`
}

// StatsText renders the placement statistics as prompt-ready text.
func (s *Settings) StatsText() string {
	return fmt.Sprintf(
		"Total Students: %d\nStudents with Internships: %d\nStudents with PPOs: %d",
		s.TotalStudents, s.PlacedInterns, s.SecuredPPO)
}

// HasStats reports whether any statistic has been recorded.
func (s *Settings) HasStats() bool {
	return s.TotalStudents > 0 || s.PlacedInterns > 0 || s.SecuredPPO > 0
}
