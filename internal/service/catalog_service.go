package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"giftcards/internal/cache"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

const offerCacheTTL = 5 * time.Minute

// Catalog is a batch of companies and offers to upsert. Rows are written as
// given, so an entry with active false is retired.
type Catalog struct {
	Companies []model.Company `json:"companies"`
	Offers    []model.Offer   `json:"offers"`
}

// CatalogService handles company and offer reads and seeding.
type CatalogService interface {
	GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error)
	ListOffers(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	CompanyBilling(ctx context.Context, companyID uuid.UUID, feeStatus model.FeeStatus) ([]model.BillingTransaction, error)
	SeedCatalog(ctx context.Context, catalog Catalog) (int, error)
}

type catalogService struct {
	store repository.Store
	cache *cache.Client
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store repository.Store, cache *cache.Client) CatalogService {
	return &catalogService{
		store: store,
		cache: cache,
	}
}

func (s *catalogService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("offer:%s", id.String())
}

// GetOffer retrieves an offer by ID with caching.
func (s *catalogService) GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	var cached model.Offer
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	offer, err := s.store.Offers().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetJSON(ctx, s.cacheKey(id), offer, offerCacheTTL)
	return offer, nil
}

// ListOffers lists active offers, optionally for one company.
func (s *catalogService) ListOffers(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error) {
	return s.store.Offers().ListActive(ctx, companyID)
}

// ListCompanies lists active companies.
func (s *catalogService) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.store.Companies().ListActive(ctx)
}

// CompanyBilling lists a company's billing transactions, optionally filtered
// by fee status.
func (s *catalogService) CompanyBilling(ctx context.Context, companyID uuid.UUID, feeStatus model.FeeStatus) ([]model.BillingTransaction, error) {
	if _, err := s.store.Companies().FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.store.Billing().ListByCompany(ctx, companyID, feeStatus)
}

// SeedCatalog creates or updates companies and offers from external data.
// Companies are written first so that offers can refer to them.
func (s *catalogService) SeedCatalog(ctx context.Context, catalog Catalog) (int, error) {
	count := 0
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		for i := range catalog.Companies {
			company := &catalog.Companies[i]
			if err := tx.Companies().Upsert(ctx, company); err != nil {
				return fmt.Errorf("seed company %s: %w", company.ID, err)
			}
			count++
		}
		for i := range catalog.Offers {
			offer := &catalog.Offers[i]
			if _, err := tx.Companies().FindByID(ctx, offer.CompanyID); err != nil {
				return fmt.Errorf("seed offer %s: company %s: %w", offer.ID, offer.CompanyID, err)
			}
			if err := tx.Offers().Upsert(ctx, offer); err != nil {
				return fmt.Errorf("seed offer %s: %w", offer.ID, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Invalidate cache
	for _, offer := range catalog.Offers {
		_ = s.cache.Delete(ctx, s.cacheKey(offer.ID))
	}
	return count, nil
}
