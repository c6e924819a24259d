package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftcards/internal/db"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(conn)
}

func seedOffer(t *testing.T, s Store) *model.Offer {
	t.Helper()
	ctx := context.Background()
	company := &model.Company{Name: "Café Nord", Active: true}
	require.NoError(t, s.Companies().Create(ctx, company))
	offer := &model.Offer{
		CompanyID:    company.ID,
		Title:        "Breakfast voucher",
		Price:        decimal.NewFromInt(10),
		Value:        decimal.NewFromInt(10),
		ExpiryMonths: 12,
		Active:       true,
	}
	require.NoError(t, s.Offers().Create(ctx, offer))
	return offer
}

func newCard(offer *model.Offer, code string) *model.Card {
	return &model.Card{
		UUID:             uuid.New(),
		RecipientUUID:    uuid.New(),
		Code:             code,
		Status:           model.CardStatusActive,
		IsPaid:           true,
		OfferID:          offer.ID,
		CompanyID:        offer.CompanyID,
		OriginalValue:    decimal.NewNullDecimal(decimal.NewFromInt(10)),
		RemainingBalance: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		CustomerEmail:    "buyer@example.com",
	}
}

func TestCardRepository_CreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	card := newCard(offer, "ABCD-EFGH")
	require.NoError(t, s.Cards().Create(ctx, card))
	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, int64(1), card.LockVersion)

	byID, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Code, byID.Code)
	assert.True(t, byID.RemainingBalance.Decimal.Equal(decimal.NewFromInt(10)))

	byCode, err := s.Cards().FindByCode(ctx, "ABCD-EFGH")
	require.NoError(t, err)
	assert.Equal(t, card.ID, byCode.ID)

	byRecipient, err := s.Cards().FindByAnyUUID(ctx, card.RecipientUUID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, byRecipient.ID)

	_, err = s.Cards().FindByUUID(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCardRepository_DuplicateCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	require.NoError(t, s.Cards().Create(ctx, newCard(offer, "ABCD-EFGH")))
	err := s.Cards().Create(ctx, newCard(offer, "ABCD-EFGH"))
	assert.True(t, errors.Is(err, apperrors.ErrDuplicate), "got %v", err)
}

func TestCardRepository_UpdateComparesVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	card := newCard(offer, "ABCD-EFGH")
	require.NoError(t, s.Cards().Create(ctx, card))

	first, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	second, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)

	first.RemainingBalance = decimal.NewNullDecimal(decimal.NewFromInt(4))
	require.NoError(t, s.Cards().Update(ctx, first, first.LockVersion))
	assert.Equal(t, int64(2), first.LockVersion)

	second.RemainingBalance = decimal.NewNullDecimal(decimal.NewFromInt(3))
	err = s.Cards().Update(ctx, second, second.LockVersion)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, int64(1), second.LockVersion)

	stored, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.RemainingBalance.Decimal.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, int64(2), stored.LockVersion)
}

func TestCardRepository_UpdateWritesZeroValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	printed := time.Now().UTC()
	card := newCard(offer, "ABCD-EFGH")
	card.RecipientEmail = "friend@example.com"
	card.PrintedAt = &printed
	require.NoError(t, s.Cards().Create(ctx, card))

	card.RecipientEmail = ""
	card.PrintedAt = nil
	require.NoError(t, s.Cards().Update(ctx, card, card.LockVersion))

	stored, err := s.Cards().FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RecipientEmail)
	assert.Nil(t, stored.PrintedAt)
}

func TestCardRepository_UpdateDuplicateCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	require.NoError(t, s.Cards().Create(ctx, newCard(offer, "ABCD-EFGH")))
	other := newCard(offer, "JKLM-NPQR")
	require.NoError(t, s.Cards().Create(ctx, other))

	other.Code = "ABCD-EFGH"
	err := s.Cards().Update(ctx, other, other.LockVersion)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicate), "got %v", err)
}

func TestCardRepository_FindByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	bought := newCard(offer, "AAAA-AAAA")
	received := newCard(offer, "BBBB-BBBB")
	received.CustomerEmail = "someone@example.com"
	received.RecipientEmail = "buyer@example.com"
	stranger := newCard(offer, "CCCC-CCCC")
	stranger.CustomerEmail = "stranger@example.com"
	for _, c := range []*model.Card{bought, received, stranger} {
		require.NoError(t, s.Cards().Create(ctx, c))
	}

	cards, err := s.Cards().Find(ctx, CardFilter{
		Email:    "buyer@example.com",
		Statuses: []model.CardStatus{model.CardStatusActive, model.CardStatusInactive, model.CardStatusRedeemed},
		Limit:    100,
	})
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	limited, err := s.Cards().Find(ctx, CardFilter{Email: "buyer@example.com", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLedgerRepository_IdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cardID := uuid.New()

	entry := func() *model.LedgerEntry {
		return &model.LedgerEntry{
			CardID:         cardID,
			Type:           model.LedgerEntryRedemption,
			Amount:         decimal.NewFromInt(5),
			Delta:          decimal.NewFromInt(-5),
			BalanceAfter:   decimal.NewFromInt(5),
			CardVersion:    2,
			IdempotencyKey: cardID.String() + ":redemption:2",
		}
	}

	require.NoError(t, s.Ledger().Append(ctx, entry()))
	err := s.Ledger().Append(ctx, entry())
	assert.True(t, errors.Is(err, apperrors.ErrDuplicate))

	entries, err := s.Ledger().ListByCard(ctx, cardID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_WithTransactionRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)
	card := newCard(offer, "ABCD-EFGH")

	boom := errors.New("ledger write failed")
	err := s.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Cards().Create(ctx, card); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	_, err = s.Cards().FindByCode(ctx, "ABCD-EFGH")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestStore_DuplicateInsideTransactionKeepsTransactionUsable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)
	require.NoError(t, s.Cards().Create(ctx, newCard(offer, "ABCD-EFGH")))

	err := s.WithTransaction(ctx, func(ctx context.Context, tx Store) error {
		dup := tx.Cards().Create(ctx, newCard(offer, "ABCD-EFGH"))
		require.True(t, errors.Is(dup, apperrors.ErrDuplicate))
		return tx.Cards().Create(ctx, newCard(offer, "JKLM-NPQR"))
	})
	require.NoError(t, err)

	_, err = s.Cards().FindByCode(ctx, "JKLM-NPQR")
	assert.NoError(t, err)
}

func TestBillingRepository_Reference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	companyID := uuid.New()

	txn := func() *model.BillingTransaction {
		return &model.BillingTransaction{
			Type:        model.BillingTypeOnlinePurchase,
			Provider:    model.BillingProviderStripe,
			Status:      model.BillingStatusSucceeded,
			Amount:      decimal.NewFromInt(10),
			Currency:    "EUR",
			PlatformFee: decimal.RequireFromString("0.5"),
			NetAmount:   decimal.RequireFromString("9.5"),
			FeeStatus:   model.FeeStatusPaidViaProvider,
			Reference:   "cs_test_123",
			CardID:      uuid.New(),
			CompanyID:   companyID,
		}
	}

	require.NoError(t, s.Billing().Create(ctx, txn()))
	assert.True(t, errors.Is(s.Billing().Create(ctx, txn()), apperrors.ErrDuplicate))

	found, err := s.Billing().FindByReference(ctx, "cs_test_123")
	require.NoError(t, err)
	assert.True(t, found.NetAmount.Equal(decimal.RequireFromString("9.5")))

	open, err := s.Billing().ListByCompany(ctx, companyID, model.FeeStatusOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestOfferRepository_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	offer := seedOffer(t, s)

	offer.Title = "Brunch voucher"
	require.NoError(t, s.Offers().Upsert(ctx, offer))

	stored, err := s.Offers().FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brunch voucher", stored.Title)

	active, err := s.Offers().ListActive(ctx, offer.CompanyID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestOperatorRepository_FindByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := &model.Operator{Name: "Kiosk 1", Email: "kiosk@example.com", PasswordHash: "x", Role: model.OperatorRoleCompany, Active: true}
	require.NoError(t, s.Operators().Create(ctx, op))

	found, err := s.Operators().FindByEmail(ctx, "kiosk@example.com")
	require.NoError(t, err)
	assert.Equal(t, op.ID, found.ID)

	_, err = s.Operators().FindByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOperatorRepository_UpsertByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &model.Operator{Name: "Admin", Email: "admin@example.com", PasswordHash: "old", Role: model.OperatorRoleAdmin, Active: true}
	require.NoError(t, s.Operators().Upsert(ctx, first))

	second := &model.Operator{Name: "Admin", Email: "admin@example.com", PasswordHash: "new", Role: model.OperatorRoleAdmin, Active: true}
	require.NoError(t, s.Operators().Upsert(ctx, second))

	found, err := s.Operators().FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, "new", found.PasswordHash)
}
