package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"giftcards/internal/model"
)

// CompanyRepository defines company persistence operations.
type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	Upsert(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	ListActive(ctx context.Context) ([]model.Company, error)
}

type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new company repository.
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

// Create creates a new company.
func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return translate(r.db.WithContext(ctx).Create(company).Error)
}

// Upsert inserts the company or overwrites the row with the same ID.
func (r *companyRepository) Upsert(ctx context.Context, company *model.Company) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(company).Error)
}

// FindByID finds a company by ID.
func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

// ListActive lists all active companies.
func (r *companyRepository) ListActive(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}
