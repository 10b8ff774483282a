package amm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// amountOut applies the constant-product formula:
//
//	(reserve_in + amount_in) * (reserve_out - amount_out) = k
//	amount_out = reserve_out - k / (reserve_in + amount_in)
//
// The division floors, so rounding loss always stays with the pool. Swap
// goes through this same function, which keeps a quote and the swap that
// follows it byte-for-byte consistent on unchanged state.
func amountOut(st PairState, dir Direction, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("amount_in must be >= 0: %w", ErrInvalidInput)
	}

	reserveIn, reserveOut := st.reserves(dir)

	newReserveIn, err := checkedAdd(reserveIn, amountIn)
	if err != nil {
		return nil, err
	}
	newReserveOut, err := checkedDiv(st.K, newReserveIn)
	if err != nil {
		return nil, err
	}
	out, err := checkedSub(reserveOut, newReserveOut)
	if err != nil {
		return nil, err
	}
	if out.Sign() < 0 {
		// k and the reserves disagree; the record is corrupt.
		return nil, fmt.Errorf("reserve_out below post-swap reserve: %w", ErrOverflow)
	}
	if out.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("amount_out %s would drain reserve %s: %w",
			out, reserveOut, ErrInsufficientLiquidity)
	}
	return out, nil
}

// Quote prices a hypothetical trade. Read-only.
func (e *Engine) Quote(ctx context.Context, dir Direction, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return amountOut(st, dir, amountIn)
}

// QuoteIn returns the input required to receive desiredOut. The division
// rounds up, mirroring the floor on the forward path: the pool never quotes
// an input too small to honor the output.
func (e *Engine) QuoteIn(ctx context.Context, dir Direction, desiredOut *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	if desiredOut == nil || desiredOut.Sign() < 0 {
		return nil, fmt.Errorf("amount_out must be >= 0: %w", ErrInvalidInput)
	}

	reserveIn, reserveOut := st.reserves(dir)
	if desiredOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("amount_out %s would drain reserve %s: %w",
			desiredOut, reserveOut, ErrInsufficientLiquidity)
	}

	newReserveOut, err := checkedSub(reserveOut, desiredOut)
	if err != nil {
		return nil, err
	}

	quo, rem := new(big.Int).QuoRem(st.K, newReserveOut, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if !fitsInt128(quo) {
		return nil, fmt.Errorf("required reserve_in out of range: %w", ErrOverflow)
	}

	amountIn, err := checkedSub(quo, reserveIn)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() < 0 {
		amountIn.SetInt64(0)
	}
	return amountIn, nil
}

// SpotPrice returns the zero-size price for the direction: output reserve
// over input reserve.
func (e *Engine) SpotPrice(ctx context.Context, dir Direction) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.loadState(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	reserveIn, reserveOut := st.reserves(dir)
	if reserveIn.Sign() == 0 {
		return decimal.Decimal{}, fmt.Errorf("reserve_in is zero: %w", ErrOverflow)
	}
	return decimal.NewFromBigInt(reserveOut, 0).
		DivRound(decimal.NewFromBigInt(reserveIn, 0), 18), nil
}
