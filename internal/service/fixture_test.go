package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"giftcards/internal/db"
	"giftcards/internal/events"
	"giftcards/internal/issuer"
	"giftcards/internal/ledger"
	"giftcards/internal/model"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
)

const systemEmail = "system@giftcards.local"

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingNotifier) Notify(ctx context.Context, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingNotifier) sent() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CardChanged
}

func (p *recordingPublisher) PublishCardChanged(ctx context.Context, event events.CardChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.CardChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.CardChanged(nil), p.events...)
}

type fixture struct {
	store     repository.Store
	deps      Deps
	cards     CardService
	gifting   GiftingService
	fulfill   FulfillmentService
	recovery  *recoveryService
	notifier  *recordingNotifier
	publisher *recordingPublisher
	company   *model.Company
	offer     *model.Offer

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		store:     repository.NewStore(conn),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		now:       time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	ctx := context.Background()
	owner := uuid.New()
	f.company = &model.Company{Name: "Café Nord", OwnedBy: &owner, Active: true}
	require.NoError(t, f.store.Companies().Create(ctx, f.company))
	f.offer = f.newOffer(t, f.company.ID, 10)

	f.deps = Deps{
		Store:    f.store,
		Issuer:   issuer.New(issuer.DefaultAttempts),
		Ledger:   ledger.NewSynchronizer(f.store, decimal.NewFromInt(5), "EUR"),
		Notifier: f.notifier,
		Events:   f.publisher,
		Options: Options{
			ConflictRetries: 3,
			SystemEmail:     systemEmail,
			RecoveryLimit:   100,
			Now:             f.clock,
		},
	}
	f.cards = NewCardService(f.deps)
	f.gifting = NewGiftingService(f.deps)
	f.fulfill = NewFulfillmentService(f.deps)
	f.recovery = NewRecoveryService(f.deps).(*recoveryService)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) newOffer(t *testing.T, companyID uuid.UUID, value int64) *model.Offer {
	t.Helper()
	offer := &model.Offer{
		CompanyID:    companyID,
		Title:        "Voucher",
		Price:        decimal.NewFromInt(value),
		Value:        decimal.NewFromInt(value),
		ExpiryMonths: 12,
		Active:       true,
	}
	require.NoError(t, f.store.Offers().Create(context.Background(), offer))
	return offer
}

// activeCard issues a paid card worth the offer value.
func (f *fixture) activeCard(t *testing.T) *model.Card {
	t.Helper()
	card, err := f.cards.CreateCard(context.Background(), CreateCardInput{
		OfferID:       f.offer.ID,
		CustomerEmail: "buyer@example.com",
		IsPaid:        true,
	})
	require.NoError(t, err)
	require.Equal(t, model.CardStatusActive, card.Status)
	return card
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *model.Card {
	t.Helper()
	card, err := f.store.Cards().FindByID(context.Background(), id)
	require.NoError(t, err)
	return card
}

func (f *fixture) ledger(t *testing.T, id uuid.UUID) []model.LedgerEntry {
	t.Helper()
	entries, err := f.store.Ledger().ListByCard(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
