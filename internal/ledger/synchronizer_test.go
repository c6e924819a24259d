package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftcards/internal/db"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/lifecycle"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

func newTestSynchronizer(t *testing.T) (*Synchronizer, repository.Store) {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := repository.NewStore(conn)
	return NewSynchronizer(store, decimal.NewFromInt(5), "EUR"), store
}

func TestSynchronizer_SyncIsIdempotent(t *testing.T) {
	sync, store := newTestSynchronizer(t)
	ctx := context.Background()
	change := Change{Op: lifecycle.OpSpend, Before: ptr(card(model.CardStatusActive, 10, 1)), After: card(model.CardStatusActive, 5, 2)}

	var first *model.LedgerEntry
	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		first, err = sync.Sync(ctx, tx, change)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, sync.Replay(ctx, change))
	require.NoError(t, sync.Replay(ctx, change))

	entries, err := store.Ledger().ListByCard(ctx, change.After.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(5)))
}

func TestSynchronizer_SyncSkipsMetadataChanges(t *testing.T) {
	sync, store := newTestSynchronizer(t)
	ctx := context.Background()
	change := Change{Op: lifecycle.OpPrint, Before: ptr(card(model.CardStatusActive, 10, 1)), After: card(model.CardStatusActive, 10, 2)}

	require.NoError(t, sync.Replay(ctx, change))

	entries, err := store.Ledger().ListByCard(ctx, change.After.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSynchronizer_RecordInStoreSale(t *testing.T) {
	sync, store := newTestSynchronizer(t)
	ctx := context.Background()
	c := card(model.CardStatusActive, 10, 2)
	company := &model.Company{ID: c.CompanyID, CommissionRate: decimal.NewNullDecimal(decimal.NewFromInt(10))}

	var txn *model.BillingTransaction
	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		txn, err = sync.RecordInStoreSale(ctx, tx, &c, company, decimal.NewFromInt(20))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, model.BillingTypeInStorePurchase, txn.Type)
	assert.Equal(t, model.BillingProviderPOS, txn.Provider)
	assert.Equal(t, model.FeeStatusOpen, txn.FeeStatus)
	assert.Equal(t, "EUR", txn.Currency)
	assert.True(t, txn.PlatformFee.Equal(decimal.NewFromInt(2)))
	assert.True(t, txn.NetAmount.Equal(decimal.NewFromInt(18)))

	open, err := store.Billing().ListByCompany(ctx, c.CompanyID, model.FeeStatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSynchronizer_RecordOnlinePurchaseRejectsReusedReference(t *testing.T) {
	sync, store := newTestSynchronizer(t)
	ctx := context.Background()
	c := card(model.CardStatusActive, 10, 1)
	payment := OnlinePayment{Reference: "cs_test_abc", Amount: decimal.NewFromInt(10)}

	record := func() error {
		return store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
			_, err := sync.RecordOnlinePurchase(ctx, tx, &c, nil, payment)
			return err
		})
	}

	require.NoError(t, record())
	err := record()
	assert.True(t, errors.Is(err, apperrors.ErrDuplicate), "got %v", err)

	txn, err := store.Billing().FindByReference(ctx, "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, model.FeeStatusPaidViaProvider, txn.FeeStatus)
	assert.True(t, txn.PlatformFee.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, txn.NetAmount.Equal(decimal.RequireFromString("9.5")))
}

func TestSynchronizer_ReplayReportsFailure(t *testing.T) {
	sync, _ := newTestSynchronizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	change := Change{Op: lifecycle.OpSpend, Before: ptr(card(model.CardStatusActive, 10, 1)), After: card(model.CardStatusActive, 5, 2)}
	change.After.ID = uuid.New()
	assert.Error(t, sync.Replay(ctx, change))
}

func TestSynchronizer_CreateInvoiceForCompany(t *testing.T) {
	sync, store := newTestSynchronizer(t)
	ctx := context.Background()
	owner := uuid.New()
	company := &model.Company{
		ID:             card(model.CardStatusActive, 10, 1).CompanyID,
		Name:           "Bakery",
		CommissionRate: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		OwnedBy:        &owner,
		Active:         true,
	}
	require.NoError(t, store.Companies().Upsert(ctx, company))

	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		for i, amount := range []int64{20, 30} {
			c := card(model.CardStatusActive, 10, int64(i+1))
			if _, err := sync.RecordInStoreSale(ctx, tx, &c, company, decimal.NewFromInt(amount)); err != nil {
				return err
			}
		}
		c := card(model.CardStatusActive, 10, 3)
		_, err := sync.RecordOnlinePurchase(ctx, tx, &c, company, OnlinePayment{Reference: "cs_test_paid", Amount: decimal.NewFromInt(10)})
		return err
	})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	invoice, err := sync.CreateInvoiceForCompany(ctx, company.ID, now)
	require.NoError(t, err)
	require.NotNil(t, invoice)

	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(5)), "got %s", invoice.TotalAmount)
	assert.Equal(t, 2, invoice.TransactionCount)
	assert.Equal(t, model.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, "EUR", invoice.Currency)
	assert.Equal(t, &owner, invoice.OwnedBy)
	assert.True(t, strings.HasPrefix(invoice.Number, "INV-2026-"), invoice.Number)
	assert.False(t, invoice.PeriodEnd.Before(invoice.PeriodStart))

	invoiced, err := store.Billing().ListByCompany(ctx, company.ID, model.FeeStatusInvoiced)
	require.NoError(t, err)
	require.Len(t, invoiced, 2)
	for _, txn := range invoiced {
		require.NotNil(t, txn.InvoiceID)
		assert.Equal(t, invoice.ID, *txn.InvoiceID)
	}

	open, err := store.Billing().ListByCompany(ctx, company.ID, model.FeeStatusOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	paid, err := store.Billing().ListByCompany(ctx, company.ID, model.FeeStatusPaidViaProvider)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Nil(t, paid[0].InvoiceID)

	stored, err := store.Invoices().FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.Number, stored.Number)

	again, err := sync.CreateInvoiceForCompany(ctx, company.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, again)

	invoices, err := store.Invoices().ListByCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestSynchronizer_CreateInvoiceForUnknownCompany(t *testing.T) {
	sync, _ := newTestSynchronizer(t)

	invoice, err := sync.CreateInvoiceForCompany(context.Background(), uuid.New(), time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "got %v", err)
	assert.Nil(t, invoice)
}
