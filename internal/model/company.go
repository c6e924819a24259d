package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Company represents a merchant issuing gift cards.
type Company struct {
	ID             uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	Name           string              `json:"name" gorm:"size:255;not null;index"`
	CommissionRate decimal.NullDecimal `json:"commission_rate" gorm:"type:decimal(5,2)"` // percent
	OwnedBy        *uuid.UUID          `json:"owned_by,omitempty" gorm:"type:char(36)"`
	Active         bool                `json:"active" gorm:"not null;index"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	DeletedAt      gorm.DeletedAt      `json:"-" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
