package services

import (
	"errors"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/gorm"
)

// SettingsService manages the organization-level settings singleton.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsService instance
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the settings record, or an empty default when none exists.
func (s *SettingsService) Get() (*models.Settings, error) {
	var settings models.Settings
	err := s.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettingsRequest carries optional settings updates.
type UpdateSettingsRequest struct {
	TotalStudents *int    `json:"totalStudents"`
	PlacedInterns *int    `json:"placedInterns"`
	SecuredPPO    *int    `json:"securedPPO"`
	BrochureURL   *string `json:"brochureUrl"`
}

// Save applies a partial update, creating the singleton on first write.
func (s *SettingsService) Save(req UpdateSettingsRequest) (*models.Settings, error) {
	var settings models.Settings
	err := s.db.First(&settings).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if req.TotalStudents != nil {
		settings.TotalStudents = *req.TotalStudents
	}
	if req.PlacedInterns != nil {
		settings.PlacedInterns = *req.PlacedInterns
	}
	if req.SecuredPPO != nil {
		settings.SecuredPPO = *req.SecuredPPO
	}
	if req.BrochureURL != nil {
		settings.BrochureURL = *req.BrochureURL
	}

	if err := s.db.Save(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}
