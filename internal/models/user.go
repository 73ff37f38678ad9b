package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an authenticated lead owner. Users are created on first successful
// magic-link verification or explicit signup and are never hard-deleted.
type User struct {
	ID    string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name  *string `json:"name"`
	Email string  `gorm:"uniqueIndex;not null" json:"email"`
	Image string  `json:"image,omitempty"`

	EmailVerifiedAt *time.Time `json:"emailVerified"`

	Accounts []Account `gorm:"foreignKey:UserID" json:"-"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
	Buyers   []Buyer   `gorm:"foreignKey:OwnerID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
