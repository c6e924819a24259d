package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "giftcards/internal/errors"
)

// CardValidator validates caller input before a card operation starts.
type CardValidator struct {
	validate *validator.Validate
}

// NewCardValidator creates a new card validator.
func NewCardValidator() *CardValidator {
	return &CardValidator{validate: validator.New()}
}

// ValidateEmail checks that email is a plausible address.
func (v *CardValidator) ValidateEmail(email string) error {
	if err := v.validate.Var(email, "required,email,max=255"); err != nil {
		return apperrors.Validation("invalid email address %q", email)
	}
	return nil
}

// ValidateAmount checks that amount is positive with at most two decimals.
func (v *CardValidator) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.Validation("amount %s has more than two decimals", amount)
	}
	return nil
}

// ValidateRecipient checks gifting metadata.
func (v *CardValidator) ValidateRecipient(r GiftRecipient) error {
	err := v.validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
		}
		return apperrors.Validation("invalid recipient: %s", strings.Join(fields, ", "))
	}
	return apperrors.Validation("invalid recipient: %v", err)
}
