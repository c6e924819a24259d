package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"giftcards/internal/model"
)

// LedgerRepository defines append-only ledger operations. There is no update
// or delete.
type LedgerRepository interface {
	// Append inserts an entry. A reused idempotency key yields ErrDuplicate.
	Append(ctx context.Context, entry *model.LedgerEntry) error
	FindByKey(ctx context.Context, key string) (*model.LedgerEntry, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]model.LedgerEntry, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	return translate(savepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	}))
}

func (r *ledgerRepository) FindByKey(ctx context.Context, key string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&entry).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// ListByCard returns a card's entries in write order.
func (r *ledgerRepository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("card_version ASC, created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
