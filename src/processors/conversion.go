package processors

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the native value scale.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// LamportsToSOL converts native value units to SOL without float rounding.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)
}

// FormatSOL renders lamports as a SOL amount with 9 decimals.
func FormatSOL(lamports uint64) string {
	return LamportsToSOL(lamports).StringFixed(9)
}
