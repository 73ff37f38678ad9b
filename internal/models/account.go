package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account links an external identity (provider + provider account id) to a
// user. A user may hold multiple links of different types.
type Account struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID            string    `gorm:"type:uuid;not null;index" json:"userId"`
	User              *User     `gorm:"foreignKey:UserID" json:"-"`
	Type              string    `gorm:"not null" json:"type"`
	Provider          string    `gorm:"not null;uniqueIndex:idx_provider_account" json:"provider"`
	ProviderAccountID string    `gorm:"not null;uniqueIndex:idx_provider_account" json:"providerAccountId"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
