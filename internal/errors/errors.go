package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a card, offer or company does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyActive is returned when activating a card that is not inactive.
	ErrAlreadyActive = errors.New("card is already active")
	// ErrNotActive is returned when an operation requires an active card.
	ErrNotActive = errors.New("card is not active")
	// ErrUnpaid is returned when an online activation targets an unpaid card.
	ErrUnpaid = errors.New("card is not paid")
	// ErrInsufficientBalance is returned when a spend exceeds the remaining balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrExpired is returned when the card's expiry date has passed.
	ErrExpired = errors.New("card has expired")
	// ErrForbidden is returned on ownership or company mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a card was modified concurrently.
	ErrConflict = errors.New("card was modified concurrently")
	// ErrCodeGenerationExhausted is returned when no unique code could be issued.
	ErrCodeGenerationExhausted = errors.New("code generation exhausted")
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrDuplicate is returned by the store when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("unique constraint violated")
)

// Validation wraps ErrValidation with a detail message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var classified = []struct {
	err    error
	status int
	code   string
}{
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrAlreadyActive, http.StatusConflict, "ALREADY_ACTIVE"},
	{ErrNotActive, http.StatusUnprocessableEntity, "NOT_ACTIVE"},
	{ErrUnpaid, http.StatusPaymentRequired, "UNPAID"},
	{ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
	{ErrExpired, http.StatusGone, "EXPIRED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrConflict, http.StatusConflict, "CONFLICT"},
	{ErrCodeGenerationExhausted, http.StatusServiceUnavailable, "CODE_GENERATION_EXHAUSTED"},
	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrDuplicate, http.StatusConflict, "DUPLICATE"},
}

// Code returns the stable code of a classified error, or INTERNAL_ERROR.
func Code(err error) string {
	for _, c := range classified {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL_ERROR"
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	for _, c := range classified {
		if errors.Is(err, c.err) {
			return NewHTTPError(c.status, err.Error(), c.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
