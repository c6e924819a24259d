package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftcards/internal/cache"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/lifecycle"
	"giftcards/internal/metrics"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

func TestEngine_RetryStopsAfterBudget(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failures  int
		wantCalls int
		wantErr   error
	}{
		{"succeeds first time", 3, 0, 1, nil},
		{"recovers after conflicts", 3, 2, 3, nil},
		{"gives up", 3, 10, 4, apperrors.ErrConflict},
		{"no retries", 0, 10, 1, apperrors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(Deps{Options: Options{ConflictRetries: tt.retries}})
			calls := 0
			err := e.retry(context.Background(), lifecycle.OpSpend, func() error {
				calls++
				if calls <= tt.failures {
					return apperrors.ErrConflict
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEngine_RetryDoesNotRepeatOtherErrors(t *testing.T) {
	e := newEngine(Deps{Options: Options{ConflictRetries: 3}})
	calls := 0
	err := e.retry(context.Background(), lifecycle.OpSpend, func() error {
		calls++
		return apperrors.ErrInsufficientBalance
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.Equal(t, 1, calls)
}

func TestEngine_RetryHonoursCancellation(t *testing.T) {
	e := newEngine(Deps{Options: Options{ConflictRetries: 5}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := e.retry(ctx, lifecycle.OpTopUp, func() error {
		calls++
		return apperrors.ErrConflict
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestEngine_RetryCountsConflicts(t *testing.T) {
	e := newEngine(Deps{Options: Options{ConflictRetries: 2}})
	counter := metrics.ConflictRetries.WithLabelValues(string(lifecycle.OpReset))
	before := testutil.ToFloat64(counter)

	_ = e.retry(context.Background(), lifecycle.OpReset, func() error { return apperrors.ErrConflict })

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestEngine_Defaults(t *testing.T) {
	e := newEngine(Deps{Options: Options{ConflictRetries: -1}})
	assert.Equal(t, 0, e.opts.ConflictRetries)
	assert.Equal(t, 5*time.Minute, e.opts.CacheTTL)
	assert.Equal(t, 100, e.opts.RecoveryLimit)
	assert.NotNil(t, e.issuer)
	assert.NotNil(t, e.notifier)
	assert.NotNil(t, e.events)
	assert.WithinDuration(t, time.Now(), e.now(), time.Minute)
}

func TestEngine_MutationOutcomeMetrics(t *testing.T) {
	f := newFixture(t)
	card := f.activeCard(t)

	ok := metrics.CardOperations.WithLabelValues(string(lifecycle.OpSpend), "ok")
	insufficient := metrics.CardOperations.WithLabelValues(string(lifecycle.OpSpend), "INSUFFICIENT_BALANCE")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(insufficient)

	_, err := f.cards.Spend(context.Background(), card.ID, dec("1"))
	require.NoError(t, err)
	_, err = f.cards.Spend(context.Background(), card.ID, dec("100"))
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(insufficient))
}

func TestEngine_FailedMutationPublishesNothing(t *testing.T) {
	f := newFixture(t)
	card := f.activeCard(t)
	published := len(f.publisher.published())

	_, err := f.cards.Spend(context.Background(), card.ID, dec("100"))
	require.Error(t, err)
	_, err = f.cards.MarkPrinted(context.Background(), card.ID, false)
	require.NoError(t, err)
	_, err = f.cards.MarkPrinted(context.Background(), card.ID, false)
	require.NoError(t, err)

	events := f.publisher.published()
	require.Len(t, events, published+1)
	last := events[len(events)-1]
	assert.Equal(t, string(lifecycle.OpPrint), last.Operation)
	require.NotNil(t, last.Before)
	assert.Equal(t, card.Code, last.Before.Code)
	assert.NotEqual(t, card.Code, last.After.Code)
}

// staleSnapshot hands out an outdated copy of a card once, as if another
// writer committed between the load and the update.
type staleSnapshot struct {
	mu   sync.Mutex
	card *model.Card
}

func (s *staleSnapshot) take(id uuid.UUID) *model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.card == nil || s.card.ID != id {
		return nil
	}
	card := *s.card
	s.card = nil
	return &card
}

type staleStore struct {
	repository.Store
	snapshot *staleSnapshot
}

func (s *staleStore) Cards() repository.CardRepository {
	return &staleCards{CardRepository: s.Store.Cards(), snapshot: s.snapshot}
}

func (s *staleStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, &staleStore{Store: tx, snapshot: s.snapshot})
	})
}

type staleCards struct {
	repository.CardRepository
	snapshot *staleSnapshot
}

func (c *staleCards) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	if card := c.snapshot.take(id); card != nil {
		return card, nil
	}
	return c.CardRepository.FindByID(ctx, id)
}

func TestEngine_StaleWriteIsRetriedOnFreshRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.activeCard(t)
	snapshot := f.stored(t, card.ID)

	_, err := f.cards.Spend(ctx, card.ID, dec("2"))
	require.NoError(t, err)

	deps := f.deps
	deps.Store = &staleStore{Store: f.store, snapshot: &staleSnapshot{card: snapshot}}
	svc := NewCardService(deps)

	retries := metrics.ConflictRetries.WithLabelValues(string(lifecycle.OpSpend))
	before := testutil.ToFloat64(retries)

	spent, err := svc.Spend(ctx, card.ID, dec("3"))
	require.NoError(t, err)
	assert.True(t, spent.RemainingBalance.Decimal.Equal(dec("5")))
	assert.Equal(t, before+1, testutil.ToFloat64(retries))

	stored := f.stored(t, card.ID)
	assert.True(t, stored.RemainingBalance.Decimal.Equal(dec("5")))
	assert.Equal(t, snapshot.LockVersion+2, stored.LockVersion)

	entries := f.ledger(t, card.ID)
	require.Len(t, entries, 3)
	assert.True(t, entries[2].Amount.Equal(dec("3")))
	assert.True(t, entries[2].BalanceAfter.Equal(dec("5")))
}

func TestEngine_StaleWriteGivesUpAsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.activeCard(t)
	snapshot := f.stored(t, card.ID)

	_, err := f.cards.Spend(ctx, card.ID, dec("2"))
	require.NoError(t, err)

	deps := f.deps
	deps.Options.ConflictRetries = 0
	deps.Store = &staleStore{Store: f.store, snapshot: &staleSnapshot{card: snapshot}}
	svc := NewCardService(deps)

	_, err = svc.Spend(ctx, card.ID, dec("3"))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.True(t, f.stored(t, card.ID).RemainingBalance.Decimal.Equal(dec("8")))
	assert.Len(t, f.ledger(t, card.ID), 2)
}

func TestEngine_CommittedOverwritesCachedView(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	e := newEngine(Deps{Cache: cache.NewWithClient(rdb), Options: Options{CacheTTL: time.Minute}})

	card := &model.Card{
		ID:          uuid.New(),
		UUID:        uuid.New(),
		Code:        "ABCD-EFGH",
		Status:      model.CardStatusActive,
		LockVersion: 7,
	}
	payload, err := json.Marshal(card)
	require.NoError(t, err)
	mock.ExpectSet("card:uuid:"+card.UUID.String(), payload, time.Minute).SetVal("OK")

	e.committed(context.Background(), lifecycle.OpSpend, nil, card)
	assert.NoError(t, mock.ExpectationsWereMet())
}
