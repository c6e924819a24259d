package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillingType represents the kind of company billing transaction.
type BillingType string

const (
	BillingTypeOnlinePurchase  BillingType = "online_purchase"
	BillingTypeInStorePurchase BillingType = "instore_purchase"
	BillingTypeRefund          BillingType = "refund"
)

// BillingProvider identifies how the money was collected.
type BillingProvider string

const (
	BillingProviderStripe BillingProvider = "stripe"
	BillingProviderPOS    BillingProvider = "pos"
	BillingProviderCash   BillingProvider = "cash"
	BillingProviderManual BillingProvider = "manual"
)

// BillingStatus represents the settlement state of a billing transaction.
type BillingStatus string

const (
	BillingStatusSucceeded BillingStatus = "succeeded"
	BillingStatusPending   BillingStatus = "pending"
	BillingStatusFailed    BillingStatus = "failed"
)

// FeeStatus tracks whether the platform fee has been collected.
type FeeStatus string

const (
	FeeStatusPaidViaProvider FeeStatus = "paid_via_provider"
	FeeStatusOpen            FeeStatus = "open"
	FeeStatusInvoiced        FeeStatus = "invoiced"
	FeeStatusWaived          FeeStatus = "waived"
	FeeStatusNotApplicable   FeeStatus = "not_applicable"
)

// BillingTransaction links a card sale to the issuing company for invoicing.
type BillingTransaction struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Type        BillingType     `json:"type" gorm:"type:varchar(20);not null;index"`
	Provider    BillingProvider `json:"provider" gorm:"type:varchar(20);not null"`
	Status      BillingStatus   `json:"status" gorm:"type:varchar(20);not null;default:'succeeded'"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Currency    string          `json:"currency" gorm:"size:3;not null"`
	PlatformFee decimal.Decimal `json:"platform_fee" gorm:"type:decimal(20,2);not null"`
	NetAmount   decimal.Decimal `json:"net_amount" gorm:"type:decimal(20,2);not null"`
	FeeStatus   FeeStatus       `json:"fee_status" gorm:"type:varchar(20);not null;index"`
	Reference   string          `json:"reference" gorm:"size:191;uniqueIndex;not null"`
	CardID      uuid.UUID       `json:"card_id" gorm:"type:char(36);not null;index"`
	CompanyID   uuid.UUID       `json:"company_id" gorm:"type:char(36);not null;index"`
	OwnedBy     *uuid.UUID      `json:"owned_by,omitempty" gorm:"type:char(36)"`
	InvoiceID   *uuid.UUID      `json:"invoice_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (b *BillingTransaction) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
