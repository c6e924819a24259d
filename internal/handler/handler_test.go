package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"giftcards/internal/auth"
	"giftcards/internal/model"
	"giftcards/internal/service"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	return e
}

// as installs claims the way the JWT middleware does.
func as(claims *auth.Claims) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims != nil {
				c.Set(auth.ContextKey, claims)
			}
			return next(c)
		}
	}
}

func companyOperator(companyID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		OperatorID: uuid.NewString(),
		Email:      "kiosk@example.com",
		Role:       string(model.OperatorRoleCompany),
		CompanyID:  companyID.String(),
	}
}

func adminOperator() *auth.Claims {
	return &auth.Claims{
		OperatorID: uuid.NewString(),
		Email:      "admin@example.com",
		Role:       string(model.OperatorRoleAdmin),
	}
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// MockCardService is a mock implementation of service.CardService.
type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) card(args mock.Arguments) (*model.Card, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardService) CreateCard(ctx context.Context, in service.CreateCardInput) (*model.Card, error) {
	return m.card(m.Called(ctx, in))
}

func (m *MockCardService) CreateInactiveCard(ctx context.Context, offerID uuid.UUID) (*model.Card, error) {
	return m.card(m.Called(ctx, offerID))
}

func (m *MockCardService) ActivateCard(ctx context.Context, in service.ActivateInput) (*model.Card, error) {
	return m.card(m.Called(ctx, in))
}

func (m *MockCardService) ActivateInStore(ctx context.Context, code string, companyID uuid.UUID, customerEmail string) (*model.Card, error) {
	return m.card(m.Called(ctx, code, companyID, customerEmail))
}

func (m *MockCardService) Spend(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error) {
	return m.card(m.Called(ctx, cardID, amount))
}

func (m *MockCardService) TopUp(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (*model.Card, error) {
	return m.card(m.Called(ctx, cardID, amount))
}

func (m *MockCardService) MarkPrinted(ctx context.Context, cardID uuid.UUID, allowInactive bool) (*model.Card, error) {
	return m.card(m.Called(ctx, cardID, allowInactive))
}

func (m *MockCardService) RegisterGiftRecipient(ctx context.Context, cardUUID uuid.UUID, recipient service.GiftRecipient) (*model.Card, error) {
	return m.card(m.Called(ctx, cardUUID, recipient))
}

func (m *MockCardService) ResetToBuyer(ctx context.Context, cardID uuid.UUID) (*model.Card, error) {
	return m.card(m.Called(ctx, cardID))
}

func (m *MockCardService) AdminUpdate(ctx context.Context, cardID uuid.UUID, changes service.AdminChanges) (*model.Card, error) {
	return m.card(m.Called(ctx, cardID, changes))
}

func (m *MockCardService) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return m.card(m.Called(ctx, id))
}

func (m *MockCardService) GetCardByUUID(ctx context.Context, cardUUID uuid.UUID) (*model.Card, error) {
	return m.card(m.Called(ctx, cardUUID))
}

func (m *MockCardService) GetCardByRecipientUUID(ctx context.Context, recipientUUID uuid.UUID) (*model.Card, error) {
	return m.card(m.Called(ctx, recipientUUID))
}

func (m *MockCardService) GetCardByCode(ctx context.Context, code string) (*model.Card, error) {
	return m.card(m.Called(ctx, code))
}

func (m *MockCardService) Ledger(ctx context.Context, cardID uuid.UUID) ([]model.LedgerEntry, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LedgerEntry), args.Error(1)
}

// MockRecoveryService is a mock implementation of service.RecoveryService.
type MockRecoveryService struct {
	mock.Mock
}

func (m *MockRecoveryService) RecoverCards(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// MockFulfillmentService is a mock implementation of service.FulfillmentService.
type MockFulfillmentService struct {
	mock.Mock
}

func (m *MockFulfillmentService) FulfillPayment(ctx context.Context, payment service.PaymentConfirmed) (*model.Card, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

// MockBillingService is a mock implementation of service.BillingService.
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) CreateInvoice(ctx context.Context, companyID uuid.UUID) (*model.Invoice, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *MockBillingService) ListInvoices(ctx context.Context, companyID uuid.UUID) ([]model.Invoice, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Invoice), args.Error(1)
}
