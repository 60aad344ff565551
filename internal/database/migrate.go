package database

import (
	"finwatch/internal/database/models"

	"gorm.io/gorm"
)

// RunMigrations creates or updates the devices and security_events
// tables. AutoMigrate is additive and idempotent; the hostname primary
// key carries the uniqueness constraint for device upserts.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Device{},
		&models.SecurityEvent{},
	)
}
