package database

import (
	"os"
	"path/filepath"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize creates and returns a database connection
func Initialize(dbPath string) (*gorm.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Contact{},
		&models.SentEmail{},
		&models.EmailReply{},
		&models.Settings{},
		&models.Log{},
	); err != nil {
		return err
	}

	// Contacts imported before the status column existed carry an empty
	// status; treat them as fresh.
	db.Model(&models.Contact{}).Where("status = '' OR status IS NULL").Update("status", models.StatusPending)

	return nil
}
