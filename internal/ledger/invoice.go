package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/logger"
	"giftcards/internal/metrics"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

// InvoiceBatchSize bounds the transactions a single invoicing run covers.
const InvoiceBatchSize = 1000

// CreateInvoiceForCompany bills a company for the platform fees of its open,
// succeeded transactions and marks them invoiced, all in one transaction.
// It returns a nil invoice when there is nothing to bill.
func (s *Synchronizer) CreateInvoiceForCompany(ctx context.Context, companyID uuid.UUID, now time.Time) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		company, err := tx.Companies().FindByID(ctx, companyID)
		if err != nil {
			return err
		}

		txns, err := tx.Billing().ListUninvoiced(ctx, companyID, InvoiceBatchSize)
		if err != nil {
			return fmt.Errorf("list open transactions: %w", err)
		}
		if len(txns) == 0 {
			return nil
		}

		total := decimal.Zero
		ids := make([]uuid.UUID, 0, len(txns))
		start, end := txns[0].CreatedAt, txns[0].CreatedAt
		for _, txn := range txns {
			total = total.Add(txn.PlatformFee)
			ids = append(ids, txn.ID)
			if txn.CreatedAt.Before(start) {
				start = txn.CreatedAt
			}
			if txn.CreatedAt.After(end) {
				end = txn.CreatedAt
			}
		}
		if !total.IsPositive() {
			return nil
		}

		inv := &model.Invoice{
			Number:           invoiceNumber(now),
			CompanyID:        company.ID,
			TotalAmount:      total,
			Currency:         s.currency,
			Status:           model.InvoiceStatusDraft,
			TransactionCount: len(txns),
			PeriodStart:      start,
			PeriodEnd:        end,
			OwnedBy:          company.OwnedBy,
		}
		if err := tx.Invoices().Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		marked, err := tx.Billing().MarkInvoiced(ctx, ids, inv.ID)
		if err != nil {
			return fmt.Errorf("mark transactions invoiced: %w", err)
		}
		// Another run claimed some of the rows first.
		if marked != int64(len(ids)) {
			return apperrors.ErrConflict
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if invoice != nil {
		metrics.Invoices.Inc()
		logger.Info("Invoice created",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("company_id", companyID.String()),
			zap.String("total", invoice.TotalAmount.StringFixed(2)),
			zap.Int("transactions", invoice.TransactionCount),
		)
	}
	return invoice, nil
}

func invoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%d-%d-%s", now.Year(), now.UnixMilli(), suffix)
}
