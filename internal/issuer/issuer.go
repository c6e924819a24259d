package issuer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	apperrors "giftcards/internal/errors"
)

// Alphabet holds the 32 code symbols. 0, 1, I and O are left out because
// they are easily confused when typed from a printed card.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultAttempts bounds how many codes are drawn before giving up.
const DefaultAttempts = 5

const codeLength = 8

// Issuer draws redemption codes and opaque card identifiers.
type Issuer struct {
	rand     io.Reader
	attempts int
}

// New creates an issuer backed by crypto/rand.
func New(attempts int) *Issuer {
	return NewWithReader(rand.Reader, attempts)
}

// NewWithReader creates an issuer reading entropy from r.
func NewWithReader(r io.Reader, attempts int) *Issuer {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Issuer{rand: r, attempts: attempts}
}

// IssueCode draws a new code formatted as XXXX-XXXX.
func (i *Issuer) IssueCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}

	var sb strings.Builder
	sb.Grow(codeLength + 1)
	for k, b := range buf {
		if k == codeLength/2 {
			sb.WriteByte('-')
		}
		// 256 is a multiple of 32, so masking keeps the draw uniform.
		sb.WriteByte(Alphabet[b&31])
	}
	return sb.String(), nil
}

// IssueUUID returns a random (version 4) UUID.
func (i *Issuer) IssueUUID() uuid.UUID {
	return uuid.Must(uuid.NewRandomFromReader(i.rand))
}

// WithUniqueCode draws codes and hands each to write until write succeeds.
// A write failing with ErrDuplicate triggers a redraw; any other error is
// returned as is. Once the attempt budget is spent ErrCodeGenerationExhausted
// is returned.
func (i *Issuer) WithUniqueCode(write func(code string) error) error {
	for attempt := 0; attempt < i.attempts; attempt++ {
		code, err := i.IssueCode()
		if err != nil {
			return err
		}
		err = write(code)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", apperrors.ErrCodeGenerationExhausted, i.attempts)
}

// NormalizeCode uppercases user input, strips separators and re-inserts the
// dash. Input that cannot be a valid code fails with a validation error.
func NormalizeCode(input string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(input)))

	if len(cleaned) != codeLength {
		return "", apperrors.Validation("code must have %d symbols", codeLength)
	}
	for _, r := range cleaned {
		if !strings.ContainsRune(Alphabet, r) {
			return "", apperrors.Validation("code contains invalid symbol %q", r)
		}
	}
	return cleaned[:codeLength/2] + "-" + cleaned[codeLength/2:], nil
}
