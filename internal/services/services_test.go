package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates a temporary sqlite database with the full schema.
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "pitcher_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Contact{},
		&models.SentEmail{},
		&models.EmailReply{},
		&models.Settings{},
		&models.Log{},
	)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

// seedTeamAndUser creates one team with one core member.
func seedTeamAndUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	team := &models.Team{Name: "Test Cell"}
	if err := db.Create(team).Error; err != nil {
		t.Fatalf("Failed to create team: %v", err)
	}

	user := &models.User{
		Email:        "core@test.local",
		PasswordHash: "x",
		Name:         "Core Member",
		Role:         models.RoleCore,
		TeamID:       team.ID,
		Enabled:      true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// seedContact creates a contact in the user's team.
func seedContact(t *testing.T, db *gorm.DB, user *models.User, email string) *models.Contact {
	t.Helper()

	contact := &models.Contact{
		CompanyName: "Acme Corp",
		HRName:      "Jordan Lee",
		Email:       email,
		Status:      models.StatusPending,
		TeamID:      user.TeamID,
		CreatedByID: user.ID,
	}
	if err := db.Create(contact).Error; err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	return contact
}
