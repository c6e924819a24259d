package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"giftcards/internal/model"
)

const (
	// AccessTokenExpiry is the duration for which access tokens are valid.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the duration for which refresh tokens are valid.
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// ContextKey is the echo context key under which validated claims are stored.
const ContextKey = "operator"

// Claims represents JWT claims of an operator.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	CompanyID  string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Company returns the company the operator acts for, or uuid.Nil.
func (c *Claims) Company() uuid.UUID {
	id, err := uuid.Parse(c.CompanyID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// HasRole reports whether the operator holds one of roles.
func (c *Claims) HasRole(roles ...model.OperatorRole) bool {
	for _, r := range roles {
		if c.Role == string(r) {
			return true
		}
	}
	return false
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// GenerateAccessToken generates a new access token for the operator.
func (s *JWTService) GenerateAccessToken(op *model.Operator) (string, error) {
	_, token, err := s.sign(op, AccessTokenExpiry)
	return token, err
}

// GenerateRefreshToken generates a new refresh token for the operator.
// The refresh token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(op *model.Operator) (tokenID string, token string, err error) {
	return s.sign(op, RefreshTokenExpiry)
}

func (s *JWTService) sign(op *model.Operator, ttl time.Duration) (string, string, error) {
	now := time.Now()
	tokenID := generateTokenID()
	claims := &Claims{
		OperatorID: op.ID.String(),
		Email:      op.Email,
		Role:       string(op.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   op.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if op.CompanyID != nil {
		claims.CompanyID = op.CompanyID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tokenID, token, err
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ExtractTokenID extracts the token ID (JTI) from a token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("token ID not found")
	}
	return claims.ID, nil
}

func generateTokenID() string {
	return uuid.New().String()
}
