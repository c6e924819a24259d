package issuer

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giftcards/internal/errors"
)

var codePattern = regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}$`)

func TestIssueCode_Format(t *testing.T) {
	iss := New(DefaultAttempts)
	for n := 0; n < 500; n++ {
		code, err := iss.IssueCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestIssueCode_DeterministicFromReader(t *testing.T) {
	// bytes 0..7 map to the first eight symbols
	iss := NewWithReader(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7}), 1)
	code, err := iss.IssueCode()
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", code)
}

func TestIssueCode_ReaderExhausted(t *testing.T) {
	iss := NewWithReader(bytes.NewReader([]byte{1, 2}), 1)
	_, err := iss.IssueCode()
	assert.Error(t, err)
}

func TestIssueUUID_Distinct(t *testing.T) {
	iss := New(DefaultAttempts)
	a, b := iss.IssueUUID(), iss.IssueUUID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 4, int(a.Version()))
}

func TestWithUniqueCode(t *testing.T) {
	t.Run("redraws on duplicate", func(t *testing.T) {
		iss := New(DefaultAttempts)
		var seen []string
		err := iss.WithUniqueCode(func(code string) error {
			seen = append(seen, code)
			if len(seen) < 3 {
				return fmt.Errorf("insert card: %w", apperrors.ErrDuplicate)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, seen, 3)
	})

	t.Run("exhausts budget", func(t *testing.T) {
		iss := New(5)
		calls := 0
		err := iss.WithUniqueCode(func(string) error {
			calls++
			return apperrors.ErrDuplicate
		})
		assert.True(t, errors.Is(err, apperrors.ErrCodeGenerationExhausted))
		assert.Equal(t, 5, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		iss := New(5)
		calls := 0
		boom := errors.New("db down")
		err := iss.WithUniqueCode(func(string) error {
			calls++
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, calls)
	})
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ABCD-EFGH", "ABCD-EFGH", false},
		{" abcd efgh ", "ABCD-EFGH", false},
		{"abcdefgh", "ABCD-EFGH", false},
		{"ABCD-EFG", "", true},
		{"ABCD-EF0H", "", true},
		{"OBCD-EFGH", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCode(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
