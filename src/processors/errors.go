// backend/src/processors/errors.go
package processors

import "errors"

// Program errors. The numeric code of each error is its position in this list.
var (
	ErrInvalidInstruction             = errors.New("invalid instruction")
	ErrInsufficientSolForDistribution = errors.New("not enough SOL for distribution")
	ErrExceedsMaximumHolding          = errors.New("exceeds maximum holding limit")
	ErrPriceFluctuationTooHigh        = errors.New("price fluctuation too high")
	ErrSlippageProtectionActive       = errors.New("slippage protection active")
	ErrInvalidTokenAccount            = errors.New("invalid token account")
	ErrInsufficientTokenBalance       = errors.New("not enough tokens")
	ErrMissingRequiredSignature       = errors.New("missing required signature")
)

var programErrors = []error{
	ErrInvalidInstruction,
	ErrInsufficientSolForDistribution,
	ErrExceedsMaximumHolding,
	ErrPriceFluctuationTooHigh,
	ErrSlippageProtectionActive,
	ErrInvalidTokenAccount,
	ErrInsufficientTokenBalance,
	ErrMissingRequiredSignature,
}

// ErrorCode returns the stable numeric code of a program error found in err's chain.
func ErrorCode(err error) (uint32, bool) {
	for i, pe := range programErrors {
		if errors.Is(err, pe) {
			return uint32(i), true
		}
	}
	return 0, false
}
