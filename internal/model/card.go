package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus represents the lifecycle state of a gift card.
type CardStatus string

const (
	CardStatusInactive CardStatus = "inactive"
	CardStatusActive   CardStatus = "active"
	CardStatusRedeemed CardStatus = "redeemed"
	// CardStatusExpired is reported at read time and never persisted.
	CardStatusExpired CardStatus = "expired"
)

// Card represents a prepaid gift card issued from an offer.
type Card struct {
	ID               uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	UUID             uuid.UUID           `json:"uuid" gorm:"column:uuid;type:char(36);uniqueIndex;not null"`
	RecipientUUID    uuid.UUID           `json:"recipient_uuid" gorm:"type:char(36);uniqueIndex;not null"`
	Code             string              `json:"code" gorm:"size:9;uniqueIndex;not null"`
	Status           CardStatus          `json:"status" gorm:"type:varchar(20);not null;default:'inactive';index"`
	IsPaid           bool                `json:"is_paid" gorm:"not null;default:false"`
	OfferID          uuid.UUID           `json:"offer_id" gorm:"type:char(36);not null;index"`
	CompanyID        uuid.UUID           `json:"company_id" gorm:"type:char(36);index"`
	OriginalValue    decimal.NullDecimal `json:"original_value" gorm:"type:decimal(20,2)"`
	RemainingBalance decimal.NullDecimal `json:"remaining_balance" gorm:"type:decimal(20,2)"`
	ActivationDate   *time.Time          `json:"activation_date,omitempty"`
	ExpiryDate       *time.Time          `json:"expiry_date,omitempty"`
	CustomerEmail    string              `json:"customer_email,omitempty" gorm:"size:255;index"`
	RecipientName    string              `json:"recipient_name,omitempty" gorm:"size:255"`
	RecipientEmail   string              `json:"recipient_email,omitempty" gorm:"size:255;index"`
	Message          string              `json:"message,omitempty" gorm:"type:text"`
	PrintedAt        *time.Time          `json:"printed_at,omitempty"`
	GiftedAt         *time.Time          `json:"gifted_at,omitempty"`
	OwnedBy          *uuid.UUID          `json:"owned_by,omitempty" gorm:"type:char(36);index"`
	LockVersion      int64               `json:"version" gorm:"not null;default:0"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	DeletedAt        gorm.DeletedAt      `json:"-" gorm:"index"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Balance returns the remaining balance, or zero when it was never initialized.
func (c *Card) Balance() decimal.Decimal {
	if !c.RemainingBalance.Valid {
		return decimal.Zero
	}
	return c.RemainingBalance.Decimal
}

// IsExpired reports whether the expiry date lies before now.
func (c *Card) IsExpired(now time.Time) bool {
	return c.ExpiryDate != nil && now.After(*c.ExpiryDate)
}

// EffectiveStatus returns the status as observed at now. Active cards past
// their expiry date read as expired.
func (c *Card) EffectiveStatus(now time.Time) CardStatus {
	if c.Status == CardStatusActive && c.IsExpired(now) {
		return CardStatusExpired
	}
	return c.Status
}

// IsGifted reports whether the card was handed to a recipient.
func (c *Card) IsGifted() bool {
	return c.GiftedAt != nil || c.RecipientEmail != ""
}
