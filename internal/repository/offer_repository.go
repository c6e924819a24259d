package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"giftcards/internal/model"
)

// OfferRepository defines offer persistence operations.
type OfferRepository interface {
	Create(ctx context.Context, offer *model.Offer) error
	Upsert(ctx context.Context, offer *model.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Offer, error)
	ListActive(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error)
}

type offerRepository struct {
	db *gorm.DB
}

// NewOfferRepository creates a new offer repository.
func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

// Create creates a new offer.
func (r *offerRepository) Create(ctx context.Context, offer *model.Offer) error {
	return translate(r.db.WithContext(ctx).Create(offer).Error)
}

// Upsert inserts the offer or overwrites the row with the same ID.
func (r *offerRepository) Upsert(ctx context.Context, offer *model.Offer) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(offer).Error)
}

// FindByID finds an offer by ID.
func (r *offerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	var offer model.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, translate(err)
	}
	return &offer, nil
}

// ListActive lists active offers, optionally restricted to one company.
func (r *offerRepository) ListActive(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if companyID != uuid.Nil {
		q = q.Where("company_id = ?", companyID)
	}
	var offers []model.Offer
	if err := q.Order("title").Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}
