package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
)

// CardFilter narrows Find. Zero fields are ignored. Email matches either the
// buyer or the recipient address.
type CardFilter struct {
	CompanyID uuid.UUID
	Email     string
	Statuses  []model.CardStatus
	Limit     int
}

// CardRepository defines card persistence operations.
type CardRepository interface {
	// Create inserts a card. A violated unique index yields ErrDuplicate.
	Create(ctx context.Context, card *model.Card) error
	// Update writes card if its stored version still equals expectedVersion and
	// bumps the version. A stale version yields ErrConflict.
	Update(ctx context.Context, card *model.Card, expectedVersion int64) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByRecipientUUID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	// FindByAnyUUID matches the owner or the recipient uuid.
	FindByAnyUUID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByCode(ctx context.Context, code string) (*model.Card, error)
	Find(ctx context.Context, filter CardFilter) ([]model.Card, error)
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	if card.LockVersion == 0 {
		card.LockVersion = 1
	}
	return translate(savepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(card).Error
	}))
}

// Update performs a compare-and-swap write on lock_version.
func (r *cardRepository) Update(ctx context.Context, card *model.Card, expectedVersion int64) error {
	card.LockVersion = expectedVersion + 1
	err := savepoint(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Model(card).
			Where("lock_version = ?", expectedVersion).
			Select("*").
			Omit("CreatedAt").
			Updates(card)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrConflict
		}
		return nil
	})
	if err != nil {
		card.LockVersion = expectedVersion
		return translate(err)
	}
	return nil
}

// FindByID finds a card by ID.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByUUID finds a card by its owner-facing uuid.
func (r *cardRepository) FindByUUID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.first(ctx, "uuid = ?", id)
}

// FindByRecipientUUID finds a card by its recipient-facing uuid.
func (r *cardRepository) FindByRecipientUUID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.first(ctx, "recipient_uuid = ?", id)
}

func (r *cardRepository) FindByAnyUUID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.first(ctx, "(uuid = ? OR recipient_uuid = ?)", id, id)
}

// FindByCode finds a card by redemption code.
func (r *cardRepository) FindByCode(ctx context.Context, code string) (*model.Card, error) {
	return r.first(ctx, "code = ?", code)
}

// Find lists cards matching filter, newest first.
func (r *cardRepository) Find(ctx context.Context, filter CardFilter) ([]model.Card, error) {
	q := r.db.WithContext(ctx).Model(&model.Card{})
	if filter.CompanyID != uuid.Nil {
		q = q.Where("company_id = ?", filter.CompanyID)
	}
	if filter.Email != "" {
		q = q.Where("(customer_email = ? OR recipient_email = ?)", filter.Email, filter.Email)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var cards []model.Card
	if err := q.Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *cardRepository) first(ctx context.Context, query string, args ...interface{}) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where(query, args...).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}
