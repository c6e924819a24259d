package service

import (
	"context"

	"github.com/google/uuid"

	"giftcards/internal/model"
)

// BillingService runs company invoicing.
type BillingService interface {
	// CreateInvoice bills the company's open platform fees. A nil invoice
	// means there was nothing to bill.
	CreateInvoice(ctx context.Context, companyID uuid.UUID) (*model.Invoice, error)
	ListInvoices(ctx context.Context, companyID uuid.UUID) ([]model.Invoice, error)
}

type billingService struct {
	*engine
}

// NewBillingService creates a new billing service.
func NewBillingService(deps Deps) BillingService {
	return &billingService{engine: newEngine(deps)}
}

func (s *billingService) CreateInvoice(ctx context.Context, companyID uuid.UUID) (*model.Invoice, error) {
	return s.ledger.CreateInvoiceForCompany(ctx, companyID, s.now())
}

// ListInvoices lists a company's invoices, newest first.
func (s *billingService) ListInvoices(ctx context.Context, companyID uuid.UUID) ([]model.Invoice, error) {
	if _, err := s.store.Companies().FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.store.Invoices().ListByCompany(ctx, companyID)
}
