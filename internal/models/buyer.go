package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Enumerated buyer attribute values. Validation and the CSV pipeline share
// these lists; the database stores the plain strings.
var (
	Cities        = []string{"Chandigarh", "Mohali", "Zirakpur", "Panchkula", "Other"}
	PropertyTypes = []string{"Apartment", "Villa", "Plot", "Office", "Retail"}
	BHKValues     = []string{"1", "2", "3", "4", "Studio"}
	Purposes      = []string{"Buy", "Rent"}
	Timelines     = []string{"0-3m", "3-6m", ">6m", "Exploring"}
	Sources       = []string{"Website", "Referral", "Walk-in", "Call", "Other"}
	Statuses      = []string{"New", "Qualified", "Contacted", "Visited", "Negotiation", "Converted", "Dropped"}
)

// StatusNew is the default status assigned to freshly captured leads.
const StatusNew = "New"

// Buyer is a prospective property buyer's contact and requirement record,
// owned exclusively by the user who created it.
type Buyer struct {
	ID           string                      `gorm:"primaryKey;type:uuid" json:"id"`
	FullName     string                      `gorm:"not null;index" json:"fullName"`
	Email        *string                     `gorm:"index" json:"email"`
	Phone        string                      `gorm:"not null;index" json:"phone"`
	City         string                      `gorm:"not null" json:"city"`
	PropertyType string                      `gorm:"not null" json:"propertyType"`
	BHK          *string                     `json:"bhk"`
	Purpose      string                      `gorm:"not null" json:"purpose"`
	BudgetMin    *int64                      `json:"budgetMin"`
	BudgetMax    *int64                      `json:"budgetMax"`
	Timeline     string                      `gorm:"not null" json:"timeline"`
	Source       string                      `gorm:"not null" json:"source"`
	Status       string                      `gorm:"not null;default:New;index" json:"status"`
	Notes        *string                     `json:"notes"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"ownerId"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"-"`

	History []BuyerHistory `gorm:"foreignKey:BuyerID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (b *Buyer) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = StatusNew
	}
	return nil
}

// RequiresBHK reports whether the property type makes the bhk field mandatory.
func RequiresBHK(propertyType string) bool {
	return propertyType == "Apartment" || propertyType == "Villa"
}
