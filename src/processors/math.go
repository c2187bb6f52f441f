package processors

import "math/big"

// mulDiv returns a*b/c truncated, computed without intermediate overflow.
// The caller guarantees c > 0 and that the result fits in 64 bits.
func mulDiv(a, b, c uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	n := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	n.Quo(n, new(big.Int).SetUint64(c))
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}

// percentOf returns amount*pct/100 truncated.
func percentOf(amount, pct uint64) uint64 {
	return mulDiv(amount, pct, 100)
}
