package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"giftcards/internal/model"
)

// OperatorRepository defines operator persistence operations.
type OperatorRepository interface {
	Create(ctx context.Context, operator *model.Operator) error
	Upsert(ctx context.Context, operator *model.Operator) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error)
	FindByEmail(ctx context.Context, email string) (*model.Operator, error)
}

type operatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository builds a GORM-backed repository.
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) Create(ctx context.Context, operator *model.Operator) error {
	return translate(r.db.WithContext(ctx).Create(operator).Error)
}

// Upsert inserts the operator or updates the row with the same email.
func (r *operatorRepository) Upsert(ctx context.Context, operator *model.Operator) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "company_id", "active", "updated_at"}),
	}).Create(operator).Error)
}

func (r *operatorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var operator model.Operator
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&operator).Error; err != nil {
		return nil, translate(err)
	}
	return &operator, nil
}

func (r *operatorRepository) FindByEmail(ctx context.Context, email string) (*model.Operator, error) {
	var operator model.Operator
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&operator).Error; err != nil {
		return nil, translate(err)
	}
	return &operator, nil
}
