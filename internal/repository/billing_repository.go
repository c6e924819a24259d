package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"giftcards/internal/model"
)

// BillingRepository defines company billing transaction persistence operations.
type BillingRepository interface {
	// Create inserts a transaction. A reused reference yields ErrDuplicate.
	Create(ctx context.Context, txn *model.BillingTransaction) error
	FindByReference(ctx context.Context, reference string) (*model.BillingTransaction, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, feeStatus model.FeeStatus) ([]model.BillingTransaction, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]model.BillingTransaction, error)
	// ListUninvoiced returns up to limit succeeded transactions whose fee is
	// still open, oldest first.
	ListUninvoiced(ctx context.Context, companyID uuid.UUID, limit int) ([]model.BillingTransaction, error)
	// MarkInvoiced moves open transactions to invoiced and reports how many
	// rows changed.
	MarkInvoiced(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) (int64, error)
}

type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository.
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

// Create creates a new billing transaction.
func (r *billingRepository) Create(ctx context.Context, txn *model.BillingTransaction) error {
	return translate(savepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(txn).Error
	}))
}

// FindByReference finds a transaction by its payment or sale reference.
func (r *billingRepository) FindByReference(ctx context.Context, reference string) (*model.BillingTransaction, error) {
	var txn model.BillingTransaction
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&txn).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// ListByCompany lists a company's transactions, optionally by fee status.
func (r *billingRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, feeStatus model.FeeStatus) ([]model.BillingTransaction, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if feeStatus != "" {
		q = q.Where("fee_status = ?", feeStatus)
	}
	var txns []model.BillingTransaction
	if err := q.Order("created_at DESC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *billingRepository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]model.BillingTransaction, error) {
	var txns []model.BillingTransaction
	if err := r.db.WithContext(ctx).Where("card_id = ?", cardID).Order("created_at ASC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *billingRepository) ListUninvoiced(ctx context.Context, companyID uuid.UUID, limit int) ([]model.BillingTransaction, error) {
	var txns []model.BillingTransaction
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND fee_status = ? AND status = ?", companyID, model.FeeStatusOpen, model.BillingStatusSucceeded).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *billingRepository) MarkInvoiced(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.BillingTransaction{}).
		Where("id IN ? AND fee_status = ?", ids, model.FeeStatusOpen).
		Updates(map[string]interface{}{
			"fee_status": model.FeeStatusInvoiced,
			"invoice_id": invoiceID,
		})
	return res.RowsAffected, res.Error
}
