package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session maps an opaque cookie token to a user and an absolute expiry.
// A session is invalid once now > ExpiresAt; expired rows are removed by the
// maintenance sweep, not on read.
type Session struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Token      string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID     string    `gorm:"type:uuid;not null;index" json:"userId"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ExpiresAt  time.Time `gorm:"index" json:"expires"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
