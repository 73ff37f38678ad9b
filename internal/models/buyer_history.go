package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldChange captures the before/after values for a single buyer field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps field names to their recorded changes.
type Diff map[string]FieldChange

// BuyerHistory is an append-only audit record written alongside every buyer
// mutation that changed at least one field. Rows are immutable and cascade
// with their buyer.
type BuyerHistory struct {
	ID        string                   `gorm:"primaryKey;type:uuid" json:"id"`
	BuyerID   string                   `gorm:"type:uuid;not null;index" json:"buyerId"`
	Buyer     *Buyer                   `gorm:"foreignKey:BuyerID;constraint:OnDelete:CASCADE" json:"-"`
	ChangedBy string                   `gorm:"type:uuid;not null;index" json:"changedBy"`
	ChangedAt time.Time                `gorm:"index" json:"changedAt"`
	Diff      datatypes.JSONType[Diff] `json:"diff"`
}

func (h *BuyerHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.ChangedAt.IsZero() {
		h.ChangedAt = time.Now()
	}
	return nil
}
