package amm

import (
	"fmt"
	"math/big"
)

// Reserves and the invariant are signed 128-bit quantities. Arithmetic runs
// on big.Int and every result is range-checked, so an out-of-range value is
// reported instead of wrapping.
var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

func fitsInt128(v *big.Int) bool {
	return v.Cmp(minInt128) >= 0 && v.Cmp(maxInt128) <= 0
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Add(a, b)
	if !fitsInt128(out) {
		return nil, fmt.Errorf("add %s + %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Sub(a, b)
	if !fitsInt128(out) {
		return nil, fmt.Errorf("sub %s - %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

func checkedMul(a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(a, b)
	if !fitsInt128(out) {
		return nil, fmt.Errorf("mul %s * %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

// checkedDiv truncates toward zero, matching integer floor division for the
// non-negative operands the pricing path produces.
func checkedDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, fmt.Errorf("div %s / 0: %w", a, ErrOverflow)
	}
	out := new(big.Int).Quo(a, b)
	if !fitsInt128(out) {
		return nil, fmt.Errorf("div %s / %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}
