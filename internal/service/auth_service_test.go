package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"giftcards/internal/auth"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
)

// MockOperatorRepository is a mock implementation of OperatorRepository.
type MockOperatorRepository struct {
	mock.Mock
}

func (m *MockOperatorRepository) Create(ctx context.Context, operator *model.Operator) error {
	args := m.Called(ctx, operator)
	return args.Error(0)
}

func (m *MockOperatorRepository) Upsert(ctx context.Context, operator *model.Operator) error {
	args := m.Called(ctx, operator)
	return args.Error(0)
}

func (m *MockOperatorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorRepository) FindByEmail(ctx context.Context, email string) (*model.Operator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, operatorID uuid.UUID, email string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, operatorID, email, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, string, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uuid.UUID), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func TestAuthService_CreateOperator(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name          string
		input         NewOperatorInput
		setupMock     func(*MockOperatorRepository)
		expectedError error
	}{
		{
			name: "successful registration",
			input: NewOperatorInput{
				Name:      "Kiosk Nord",
				Email:     "Kiosk@Example.com",
				Password:  "password123",
				Role:      model.OperatorRoleCompany,
				CompanyID: &companyID,
			},
			setupMock: func(m *MockOperatorRepository) {
				m.On("FindByEmail", mock.Anything, "kiosk@example.com").Return(nil, apperrors.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.Operator")).Return(nil)
			},
		},
		{
			name: "operator already exists",
			input: NewOperatorInput{
				Name:     "Admin",
				Email:    "existing@example.com",
				Password: "password123",
				Role:     model.OperatorRoleAdmin,
			},
			setupMock: func(m *MockOperatorRepository) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.Operator{Email: "existing@example.com"}, nil)
			},
			expectedError: ErrOperatorAlreadyExists,
		},
		{
			name: "company operator without company",
			input: NewOperatorInput{
				Name:     "Kiosk",
				Email:    "kiosk@example.com",
				Password: "password123",
				Role:     model.OperatorRoleCompany,
			},
			setupMock:     func(m *MockOperatorRepository) {},
			expectedError: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockOperatorRepository)
			tt.setupMock(mockRepo)

			service := NewAuthService(mockRepo, auth.NewJWTService("test-secret"), new(MockTokenStore))
			operator, err := service.CreateOperator(context.Background(), tt.input)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, operator)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "kiosk@example.com", operator.Email)
				assert.Equal(t, &companyID, operator.CompanyID)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte("password123")))
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	operatorID := uuid.New()

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockOperatorRepository, *MockTokenStore)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "kiosk@example.com",
			password: "password123",
			setupMock: func(mRepo *MockOperatorRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "kiosk@example.com").Return(&model.Operator{
					ID:           operatorID,
					Email:        "kiosk@example.com",
					PasswordHash: string(hashedPassword),
					Role:         model.OperatorRoleAdmin,
					Active:       true,
				}, nil)
				mToken.On("StoreRefreshToken", mock.Anything, mock.Anything, operatorID, "kiosk@example.com", auth.RefreshTokenExpiry).Return(nil)
			},
		},
		{
			name:     "invalid credentials - operator not found",
			email:    "notfound@example.com",
			password: "password123",
			setupMock: func(mRepo *MockOperatorRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, apperrors.ErrNotFound)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - wrong password",
			email:    "kiosk@example.com",
			password: "wrong",
			setupMock: func(mRepo *MockOperatorRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "kiosk@example.com").Return(&model.Operator{
					ID:           operatorID,
					Email:        "kiosk@example.com",
					PasswordHash: string(hashedPassword),
					Active:       true,
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - deactivated",
			email:    "kiosk@example.com",
			password: "password123",
			setupMock: func(mRepo *MockOperatorRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "kiosk@example.com").Return(&model.Operator{
					ID:           operatorID,
					Email:        "kiosk@example.com",
					PasswordHash: string(hashedPassword),
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockOperatorRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			service := NewAuthService(mockRepo, auth.NewJWTService("test-secret"), mockTokenStore)
			accessToken, refreshToken, operator, err := service.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
				assert.Nil(t, operator)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
				assert.Equal(t, tt.email, operator.Email)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	operator := &model.Operator{
		ID:     uuid.New(),
		Email:  "admin@example.com",
		Role:   model.OperatorRoleAdmin,
		Active: true,
	}
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken(operator)
	require.NoError(t, err)

	mockRepo := new(MockOperatorRepository)
	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(operator.ID, operator.Email, nil).Once()
	mockRepo.On("FindByID", mock.Anything, operator.ID).Return(operator, nil).Once()
	mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil).Once()

	service := NewAuthService(mockRepo, jwtService, mockTokenStore)

	accessToken, err := service.RefreshToken(context.Background(), refreshToken)
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, operator.ID.String(), claims.OperatorID)

	require.NoError(t, service.Logout(context.Background(), refreshToken))

	_, err = service.RefreshToken(context.Background(), "not-a-token")
	assert.Equal(t, ErrInvalidRefreshToken, err)

	mockRepo.AssertExpectations(t)
	mockTokenStore.AssertExpectations(t)
}

func TestAuthService_RevokeAccessToken(t *testing.T) {
	operator := &model.Operator{ID: uuid.New(), Email: "kiosk@example.com", Role: model.OperatorRoleCompany}
	jwtService := auth.NewJWTService("test-secret")
	accessToken, err := jwtService.GenerateAccessToken(operator)
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(accessToken)
	require.NoError(t, err)

	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, claims.ID,
		mock.MatchedBy(func(ttl time.Duration) bool { return ttl > 0 && ttl <= auth.AccessTokenExpiry })).
		Return(nil).Once()

	service := NewAuthService(new(MockOperatorRepository), jwtService, mockTokenStore)
	require.NoError(t, service.RevokeAccessToken(context.Background(), claims))
	require.NoError(t, service.RevokeAccessToken(context.Background(), nil))

	mockTokenStore.AssertExpectations(t)
}
