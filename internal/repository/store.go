package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one card operation. A Store
// obtained inside WithTransaction shares a single database transaction.
type Store interface {
	Cards() CardRepository
	Offers() OfferRepository
	Companies() CompanyRepository
	Ledger() LedgerRepository
	Billing() BillingRepository
	Invoices() InvoiceRepository
	Operators() OperatorRepository
	// WithTransaction executes fn within a database transaction. fn must only
	// use the Store it receives.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a new GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Cards() CardRepository         { return &cardRepository{db: s.db} }
func (s *store) Offers() OfferRepository       { return &offerRepository{db: s.db} }
func (s *store) Companies() CompanyRepository  { return &companyRepository{db: s.db} }
func (s *store) Ledger() LedgerRepository      { return &ledgerRepository{db: s.db} }
func (s *store) Billing() BillingRepository    { return &billingRepository{db: s.db} }
func (s *store) Invoices() InvoiceRepository   { return &invoiceRepository{db: s.db} }
func (s *store) Operators() OperatorRepository { return &operatorRepository{db: s.db} }

// WithTransaction executes a function within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx})
	})
}

// savepoint runs fn in a nested transaction so that a failed statement, such
// as a unique violation, does not abort an enclosing postgres transaction.
func savepoint(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
