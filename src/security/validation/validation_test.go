package validation

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccountKey(t *testing.T) {
	want := solana.SystemProgramID
	got, err := ValidateAccountKey("  "+want.String()+" ", "source")
	require.NoError(t, err)
	assert.True(t, got.Equals(want))

	_, err = ValidateAccountKey("", "source")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = ValidateAccountKey("not-base58-0OIl", "source")
	assert.ErrorIs(t, err, ErrValidationFailed)

	zero, err := ValidateOptionalAccountKey("", "escrow")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(1, "amount", false))
	assert.NoError(t, ValidateAmount(0, "amount", true))
	assert.ErrorIs(t, ValidateAmount(0, "amount", false), ErrValidationFailed)
	assert.ErrorIs(t, ValidateAmount(1<<63, "amount", false), ErrValidationFailed)
}

func TestSanitizeMemo(t *testing.T) {
	clean, err := SanitizeMemo("  <b>thanks</b> for lunch\x00 ", "test")
	require.NoError(t, err)
	assert.Equal(t, "thanks for lunch", clean)

	_, err = SanitizeMemo(`<script>alert(1)</script>`, "test")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = SanitizeMemo(strings.Repeat("a", MaxMemoLength+1), "test")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestParseLimitAndSince(t *testing.T) {
	n, err := ParseLimit("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, n)

	n, err = ParseLimit("5000")
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, n)

	_, err = ParseLimit("-1")
	assert.ErrorIs(t, err, ErrValidationFailed)

	since, err := ParseSince("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, since.Year())

	_, err = ParseSince("01-03-2024")
	assert.ErrorIs(t, err, ErrValidationFailed)
}
