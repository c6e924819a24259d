package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Offer is a catalog entry defining a card's nominal value, price and validity.
type Offer struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	CompanyID          uuid.UUID       `json:"company_id" gorm:"type:char(36);not null;index"`
	Title              string          `json:"title" gorm:"size:255;not null"`
	Price              decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null"`
	Value              decimal.Decimal `json:"value" gorm:"type:decimal(20,2);not null"`
	ExpiryMonths       int             `json:"expiry_months" gorm:"not null;default:0"`
	ExpiryDurationDays int             `json:"expiry_duration_days" gorm:"not null;default:0"`
	ValidUntil         *time.Time      `json:"valid_until,omitempty"`
	Active             bool            `json:"active" gorm:"not null;index"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `json:"-" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
