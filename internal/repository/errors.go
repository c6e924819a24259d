package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "giftcards/internal/errors"
)

// translate maps driver errors onto the classified store errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", apperrors.ErrDuplicate, err)
	default:
		return err
	}
}

// isUniqueViolation recognizes unique-index violations. gorm translates them
// for every dialect when TranslateError is set; the message checks cover
// connections opened without it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, apperrors.ErrDuplicate) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql 1062
		strings.Contains(msg, "SQLSTATE 23505") // postgres
}
