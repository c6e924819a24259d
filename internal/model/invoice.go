package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus represents the lifecycle of a company invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusSynced InvoiceStatus = "synced"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// Invoice bills a company for the platform fees of its open billing
// transactions.
type Invoice struct {
	ID               uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Number           string          `json:"number" gorm:"size:64;uniqueIndex;not null"`
	CompanyID        uuid.UUID       `json:"company_id" gorm:"type:char(36);not null;index"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,2);not null"`
	Currency         string          `json:"currency" gorm:"size:3;not null"`
	Status           InvoiceStatus   `json:"status" gorm:"type:varchar(20);not null"`
	TransactionCount int             `json:"transaction_count" gorm:"not null"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	OwnedBy          *uuid.UUID      `json:"owned_by,omitempty" gorm:"type:char(36)"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
