package amm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/luoye/poolswap/internal/ledger"
)

// Swap executes a trade: it prices amountIn with the same formula Quote
// uses, pulls the input asset from caller under a pre-existing allowance,
// persists the updated reserves, and pays out the output asset. Side
// effects are ordered so that any single failure unwinds completely:
// nothing moves before the checks pass, a failed persist refunds the pulled
// input, and a failed payout restores the previous record and refunds.
func (e *Engine) Swap(ctx context.Context, caller common.Address, dir Direction, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	out, err := amountOut(prev, dir, amountIn)
	if err != nil {
		return nil, err
	}

	next, err := applySwap(prev, dir, amountIn, out)
	if err != nil {
		return nil, err
	}

	assetIn, assetOut := prev.AssetY, prev.AssetX
	if dir == DirectionXIn {
		assetIn, assetOut = prev.AssetX, prev.AssetY
	}

	ledgerIn, err := e.ledgerFor(assetIn)
	if err != nil {
		return nil, err
	}
	ledgerOut, err := e.ledgerFor(assetOut)
	if err != nil {
		return nil, err
	}

	granted, err := ledgerIn.Allowance(ctx, caller, e.account)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if granted.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("allowance %s below amount_in %s: %w",
			granted, amountIn, ErrUnauthorized)
	}

	if err := ledgerIn.TransferFrom(ctx, e.account, caller, e.account, amountIn); err != nil {
		return nil, fmt.Errorf("pull input: %w: %v", ErrTransferFailed, err)
	}

	if err := e.store.Save(ctx, e.toRecord(next)); err != nil {
		e.refundInput(ctx, ledgerIn, caller, amountIn)
		return nil, fmt.Errorf("save pair state: %w", err)
	}

	if err := ledgerOut.Transfer(ctx, e.account, caller, out); err != nil {
		if restoreErr := e.store.Save(ctx, e.toRecord(prev)); restoreErr != nil {
			e.logger.Error("restore pair state after failed payout",
				zap.String("pool", e.name), zap.Error(restoreErr))
		}
		e.refundInput(ctx, ledgerIn, caller, amountIn)
		return nil, fmt.Errorf("push output: %w: %v", ErrTransferFailed, err)
	}

	e.logger.Info("swap",
		zap.String("pool", e.name),
		zap.String("caller", caller.Hex()),
		zap.String("direction", dir.String()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()),
		zap.String("reserve_x", next.ReserveX.String()),
		zap.String("reserve_y", next.ReserveY.String()),
		zap.String("k", next.K.String()),
	)

	return out, nil
}

// applySwap computes the post-swap state with checked arithmetic and a
// freshly derived invariant.
func applySwap(prev PairState, dir Direction, amountIn, out *big.Int) (PairState, error) {
	next := PairState{AssetX: prev.AssetX, AssetY: prev.AssetY}

	var err error
	if dir == DirectionXIn {
		if next.ReserveX, err = checkedAdd(prev.ReserveX, amountIn); err != nil {
			return PairState{}, err
		}
		if next.ReserveY, err = checkedSub(prev.ReserveY, out); err != nil {
			return PairState{}, err
		}
	} else {
		if next.ReserveY, err = checkedAdd(prev.ReserveY, amountIn); err != nil {
			return PairState{}, err
		}
		if next.ReserveX, err = checkedSub(prev.ReserveX, out); err != nil {
			return PairState{}, err
		}
	}

	if next.ReserveX.Sign() <= 0 || next.ReserveY.Sign() <= 0 {
		return PairState{}, fmt.Errorf("post-swap reserves must stay positive: %w", ErrInsufficientLiquidity)
	}

	if next.K, err = checkedMul(next.ReserveX, next.ReserveY); err != nil {
		return PairState{}, err
	}
	return next, nil
}

func (e *Engine) ledgerFor(asset common.Address) (ledger.Ledger, error) {
	l, ok := e.ledgers[asset]
	if !ok {
		return nil, fmt.Errorf("no ledger attached for asset %s", asset.Hex())
	}
	return l, nil
}

func (e *Engine) refundInput(ctx context.Context, l ledger.Ledger, caller common.Address, amountIn *big.Int) {
	if amountIn.Sign() == 0 {
		return
	}
	if err := l.Transfer(ctx, e.account, caller, amountIn); err != nil {
		e.logger.Error("refund input after failed swap",
			zap.String("pool", e.name),
			zap.String("caller", caller.Hex()),
			zap.String("amount_in", amountIn.String()),
			zap.Error(err))
	}
}
