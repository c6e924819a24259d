package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"giftcards/internal/auth"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
	"giftcards/internal/repository"
)

const bcryptCost = 10

var (
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrOperatorAlreadyExists is returned when registering a taken email.
	ErrOperatorAlreadyExists = errors.New("operator already exists")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// NewOperatorInput describes a kiosk or back-office account.
type NewOperatorInput struct {
	Name      string
	Email     string
	Password  string
	Role      model.OperatorRole
	CompanyID *uuid.UUID
}

// AuthService handles operator authentication.
type AuthService interface {
	CreateOperator(ctx context.Context, in NewOperatorInput) (*model.Operator, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, operator *model.Operator, err error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	RevokeAccessToken(ctx context.Context, claims *auth.Claims) error
}

type authService struct {
	operatorRepo repository.OperatorRepository
	jwtService   *auth.JWTService
	tokenStore   auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(operatorRepo repository.OperatorRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		operatorRepo: operatorRepo,
		jwtService:   jwtService,
		tokenStore:   tokenStore,
	}
}

// CreateOperator creates an operator with a hashed password. Company
// operators must name the company they act for.
func (s *authService) CreateOperator(ctx context.Context, in NewOperatorInput) (*model.Operator, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	switch in.Role {
	case model.OperatorRoleAdmin, model.OperatorRoleSystem:
	case model.OperatorRoleCompany:
		if in.CompanyID == nil || *in.CompanyID == uuid.Nil {
			return nil, apperrors.Validation("company operators need a company")
		}
	default:
		return nil, apperrors.Validation("unknown operator role %q", in.Role)
	}

	existing, err := s.operatorRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrOperatorAlreadyExists
	}
	// Anything but "not found" is a database error
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check operator existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	operator := &model.Operator{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         in.Role,
		CompanyID:    in.CompanyID,
		Active:       true,
	}
	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return operator, nil
}

// Login authenticates an operator and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, operator *model.Operator, err error) {
	operator, err = s.operatorRepo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil || !operator.Active {
		return "", "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.jwtService.GenerateAccessToken(operator)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(operator)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, operator.ID, operator.Email, auth.RefreshTokenExpiry); err != nil {
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	return accessToken, refreshToken, operator, nil
}

// RefreshToken validates a refresh token and returns a new access token. The
// operator is reloaded so that a deactivated account cannot refresh.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil || claims.ID == "" {
		return "", ErrInvalidRefreshToken
	}

	storedID, storedEmail, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if storedID.String() != claims.OperatorID || storedEmail != claims.Email {
		return "", ErrInvalidRefreshToken
	}

	operator, err := s.operatorRepo.FindByID(ctx, storedID)
	if err != nil || !operator.Active {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(operator)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	return s.tokenStore.DeleteRefreshToken(ctx, tokenID)
}

// RevokeAccessToken blacklists an access token until it would have expired.
func (s *authService) RevokeAccessToken(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.tokenStore.BlacklistAccessToken(ctx, claims.ID, ttl)
}
