package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/logger"
	"giftcards/internal/metrics"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

// OnlinePayment is the provider-confirmed part of an online purchase.
type OnlinePayment struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// Synchronizer appends ledger entries and company billing records for
// committed card changes.
type Synchronizer struct {
	store       repository.Store
	defaultRate decimal.Decimal
	currency    string
}

// NewSynchronizer creates a synchronizer. defaultRate is the commission
// percent applied to companies without their own rate.
func NewSynchronizer(store repository.Store, defaultRate decimal.Decimal, currency string) *Synchronizer {
	return &Synchronizer{store: store, defaultRate: defaultRate, currency: currency}
}

// Sync appends the entry derived from change using tx. An entry whose
// idempotency key already exists is left untouched and returned.
func (s *Synchronizer) Sync(ctx context.Context, tx repository.Store, change Change) (*model.LedgerEntry, error) {
	entry, ok := Derive(change)
	if !ok {
		return nil, nil
	}

	err := tx.Ledger().Append(ctx, entry)
	if errors.Is(err, apperrors.ErrDuplicate) {
		metrics.LedgerDuplicates.Inc()
		return tx.Ledger().FindByKey(ctx, entry.IdempotencyKey)
	}
	if err != nil {
		return nil, fmt.Errorf("append %s entry: %w", entry.Type, err)
	}

	metrics.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
	return entry, nil
}

// Replay reapplies a change notification in its own transaction. Entries
// that were already posted are skipped, so deliveries may repeat. Failures
// are logged and counted; the card itself is never touched.
func (s *Synchronizer) Replay(ctx context.Context, change Change) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := s.Sync(ctx, tx, change)
		return err
	})
	if err != nil {
		metrics.LedgerSyncFailures.Inc()
		logger.Error("Ledger replay failed",
			zap.String("card_id", change.After.ID.String()),
			zap.String("operation", string(change.Op)),
			zap.Int64("version", change.After.LockVersion),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// RecordInStoreSale books a kiosk sale against the activating company. The
// platform fee stays open until invoiced.
func (s *Synchronizer) RecordInStoreSale(ctx context.Context, tx repository.Store, card *model.Card, company *model.Company, amount decimal.Decimal) (*model.BillingTransaction, error) {
	fee, net := CalculateFee(amount, CommissionRate(company, s.defaultRate))
	txn := &model.BillingTransaction{
		Type:        model.BillingTypeInStorePurchase,
		Provider:    model.BillingProviderPOS,
		Status:      model.BillingStatusSucceeded,
		Amount:      amount,
		Currency:    s.currency,
		PlatformFee: fee,
		NetAmount:   net,
		FeeStatus:   model.FeeStatusOpen,
		Reference:   fmt.Sprintf("instore:%s:%d", card.ID, card.LockVersion),
		CardID:      card.ID,
		CompanyID:   card.CompanyID,
		OwnedBy:     card.OwnedBy,
	}
	if err := s.createBilling(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordOnlinePurchase books a provider-collected payment. The provider
// withholds the platform fee, so it is recorded as already paid. A reused
// payment reference fails with ErrDuplicate.
func (s *Synchronizer) RecordOnlinePurchase(ctx context.Context, tx repository.Store, card *model.Card, company *model.Company, payment OnlinePayment) (*model.BillingTransaction, error) {
	currency := payment.Currency
	if currency == "" {
		currency = s.currency
	}
	fee, net := CalculateFee(payment.Amount, CommissionRate(company, s.defaultRate))
	txn := &model.BillingTransaction{
		Type:        model.BillingTypeOnlinePurchase,
		Provider:    model.BillingProviderStripe,
		Status:      model.BillingStatusSucceeded,
		Amount:      payment.Amount,
		Currency:    currency,
		PlatformFee: fee,
		NetAmount:   net,
		FeeStatus:   model.FeeStatusPaidViaProvider,
		Reference:   payment.Reference,
		CardID:      card.ID,
		CompanyID:   card.CompanyID,
		OwnedBy:     card.OwnedBy,
	}
	if err := s.createBilling(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Synchronizer) createBilling(ctx context.Context, tx repository.Store, txn *model.BillingTransaction) error {
	if err := tx.Billing().Create(ctx, txn); err != nil {
		return fmt.Errorf("record %s billing: %w", txn.Type, err)
	}
	metrics.BillingTransactions.WithLabelValues(string(txn.Type)).Inc()
	return nil
}
