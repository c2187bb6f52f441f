// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxMemoLength       = 256
	MaxListLimit        = 200
	DefaultListLimit    = 20
	MaxFluctuationBps   = 10_000
	maxAccountKeyLength = 44 // base58 of 32 bytes
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateAccountKey parses a base58 account key.
func ValidateAccountKey(s, fieldName string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return solana.PublicKey{}, err
	}
	if len(trimmed) > maxAccountKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is not an account key", ErrValidationFailed, fieldName)
	}
	key, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s ('%s') is not a valid account key: %v", ErrValidationFailed, fieldName, trimmed, err)
	}
	return key, nil
}

// ValidateOptionalAccountKey is ValidateAccountKey that accepts an empty value as the zero key.
func ValidateOptionalAccountKey(s, fieldName string) (solana.PublicKey, error) {
	if strings.TrimSpace(s) == "" {
		return solana.PublicKey{}, nil
	}
	return ValidateAccountKey(s, fieldName)
}

// ValidateAmount checks that an amount is positive and storable by the ledger.
func ValidateAmount(amount uint64, fieldName string, allowZero bool) error {
	if amount == 0 && !allowZero {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: %s is too large", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateFluctuationBps bounds a volatility reading to 0..100%.
func ValidateFluctuationBps(bps uint16) error {
	if bps > MaxFluctuationBps {
		return fmt.Errorf("%w: fluctuation_bps %d exceeds %d", ErrValidationFailed, bps, MaxFluctuationBps)
	}
	return nil
}

// ParseLimit reads a list limit query value, applying the default and the maximum.
func ParseLimit(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit ('%s') must be a positive integer", ErrValidationFailed, s)
	}
	if n > MaxListLimit {
		n = MaxListLimit
	}
	return n, nil
}

// ParseSince reads an optional YYYY-MM-DD date. An empty value means no lower bound.
func ParseSince(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since ('%s') is not in YYYY-MM-DD format", ErrValidationFailed, s)
	}
	return t, nil
}
