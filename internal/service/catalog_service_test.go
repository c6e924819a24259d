package service

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftcards/internal/cache"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
)

func TestCatalogService_SeedCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCatalogService(f.store, nil)

	companyID := uuid.New()
	offerID := uuid.New()
	catalog := Catalog{
		Companies: []model.Company{{ID: companyID, Name: "Bäckerei Sonne", Active: true,
			CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("7.5"))}},
		Offers: []model.Offer{{ID: offerID, CompanyID: companyID, Title: "Breakfast", Price: dec("20"), Value: dec("25"), ExpiryMonths: 6, Active: true}},
	}

	count, err := svc.SeedCatalog(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	catalog.Offers[0].Title = "Brunch"
	count, err = svc.SeedCatalog(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	offer, err := svc.GetOffer(ctx, offerID)
	require.NoError(t, err)
	assert.Equal(t, "Brunch", offer.Title)
	assert.True(t, offer.Value.Equal(dec("25")))

	offers, err := svc.ListOffers(ctx, companyID)
	require.NoError(t, err)
	assert.Len(t, offers, 1)

	all, err := svc.ListOffers(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	companies, err := svc.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, companies, 2)
}

func TestCatalogService_SeedRetiresInactiveEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCatalogService(f.store, nil)

	companyID := uuid.New()
	draftID := uuid.New()
	_, err := svc.SeedCatalog(ctx, Catalog{
		Companies: []model.Company{{ID: companyID, Name: "Closed shop", Active: false}},
		Offers:    []model.Offer{{ID: draftID, CompanyID: companyID, Title: "Draft", Price: dec("5"), Value: dec("5"), Active: false}},
	})
	require.NoError(t, err)

	company, err := f.store.Companies().FindByID(ctx, companyID)
	require.NoError(t, err)
	assert.False(t, company.Active)
	draft, err := f.store.Offers().FindByID(ctx, draftID)
	require.NoError(t, err)
	assert.False(t, draft.Active)

	retired := *f.offer
	retired.Active = false
	_, err = svc.SeedCatalog(ctx, Catalog{Offers: []model.Offer{retired}})
	require.NoError(t, err)

	stored, err := f.store.Offers().FindByID(ctx, f.offer.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	offers, err := svc.ListOffers(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)

	_, err = f.cards.CreateCard(ctx, CreateCardInput{OfferID: f.offer.ID, IsPaid: true})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCatalogService_SeedRejectsOrphanOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCatalogService(f.store, nil)

	companyID := uuid.New()
	_, err := svc.SeedCatalog(ctx, Catalog{
		Companies: []model.Company{{ID: companyID, Name: "Kept out", Active: true}},
		Offers:    []model.Offer{{ID: uuid.New(), CompanyID: uuid.New(), Title: "Orphan", Price: dec("5"), Value: dec("5"), Active: true}},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// the whole batch is rolled back
	_, err = f.store.Companies().FindByID(ctx, companyID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogService_CompanyBilling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCatalogService(f.store, nil)

	stock, err := f.cards.CreateInactiveCard(ctx, f.offer.ID)
	require.NoError(t, err)
	_, err = f.cards.ActivateCard(ctx, ActivateInput{CardID: stock.ID, Source: ActivationInStore, CompanyID: f.company.ID})
	require.NoError(t, err)
	_, err = f.fulfill.FulfillPayment(ctx, f.payment("cs_billing"))
	require.NoError(t, err)

	all, err := svc.CompanyBilling(ctx, f.company.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := svc.CompanyBilling(ctx, f.company.ID, model.FeeStatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, model.BillingTypeInStorePurchase, open[0].Type)

	_, err = svc.CompanyBilling(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogService_GetOfferUsesCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f := newFixture(t)
	svc := NewCatalogService(f.store, cache.NewWithClient(rdb))

	// The offer only exists in the cache.
	offerID := uuid.New()
	mock.ExpectGet("offer:" + offerID.String()).
		SetVal(`{"id":"` + offerID.String() + `","title":"Cached","price":"5","value":"5","active":true}`)

	offer, err := svc.GetOffer(context.Background(), offerID)
	require.NoError(t, err)
	assert.Equal(t, "Cached", offer.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogService_GetOfferMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f := newFixture(t)
	svc := NewCatalogService(f.store, cache.NewWithClient(rdb))

	offerID := uuid.New()
	mock.ExpectGet("offer:" + offerID.String()).RedisNil()

	_, err := svc.GetOffer(context.Background(), offerID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
