package database

import (
	"gorm.io/gorm"

	"github.com/leadvault/leadvault/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Session{},
		&models.VerificationToken{},
		&models.Buyer{},
		&models.BuyerHistory{},
	)
}
