package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationToken is a single-use magic-link token. Only the SHA-256 hash of
// the token is stored; the row is deleted atomically on consumption.
type VerificationToken struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Identifier string    `gorm:"not null;index" json:"identifier"`
	TokenHash  string    `gorm:"uniqueIndex;not null" json:"-"`
	Name       string    `json:"name,omitempty"`
	ExpiresAt  time.Time `gorm:"index" json:"expires"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (t *VerificationToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
