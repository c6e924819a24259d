package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntryType classifies a balance-affecting card event.
type LedgerEntryType string

const (
	LedgerEntryIssue       LedgerEntryType = "issue"
	LedgerEntryActivation  LedgerEntryType = "activation"
	LedgerEntryTopUp       LedgerEntryType = "top_up"
	LedgerEntryRedemption  LedgerEntryType = "redemption"
	LedgerEntryInStoreSale LedgerEntryType = "instore_sale"
	LedgerEntryCorrection  LedgerEntryType = "correction"
)

// LedgerEntry is an immutable record of a monetary event on a card.
// Entries are never updated; corrections are appended as new entries.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	CardID         uuid.UUID       `json:"card_id" gorm:"type:char(36);not null;index"`
	CompanyID      uuid.UUID       `json:"company_id" gorm:"type:char(36);index"`
	OwnedBy        *uuid.UUID      `json:"owned_by,omitempty" gorm:"type:char(36)"`
	Type           LedgerEntryType `json:"type" gorm:"type:varchar(20);not null;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Delta          decimal.Decimal `json:"delta" gorm:"type:decimal(20,2);not null"`
	BalanceAfter   decimal.Decimal `json:"balance_after" gorm:"type:decimal(20,2);not null"`
	CardVersion    int64           `json:"card_version" gorm:"not null"`
	IdempotencyKey string          `json:"idempotency_key" gorm:"size:191;uniqueIndex;not null"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
