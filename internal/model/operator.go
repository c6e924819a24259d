package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperatorRole determines which routes an operator may call.
type OperatorRole string

const (
	OperatorRoleAdmin   OperatorRole = "admin"
	OperatorRoleCompany OperatorRole = "company"
	OperatorRoleSystem  OperatorRole = "system"
)

// Operator is a kiosk or back-office user authenticating against the API.
type Operator struct {
	ID           uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	Name         string       `json:"name" gorm:"size:255;not null"`
	Email        string       `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string       `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         OperatorRole `json:"role" gorm:"size:20;not null;default:'company'"`
	CompanyID    *uuid.UUID   `json:"company_id,omitempty" gorm:"type:char(36);index"`
	Active       bool         `json:"active" gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
