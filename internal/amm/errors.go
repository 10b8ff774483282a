package amm

import "errors"

var (
	// ErrInvalidInput rejects negative amounts and malformed pair parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOverflow reports a checked add/sub/mul/div that left the 128-bit
	// range or divided by zero.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrInsufficientLiquidity rejects a trade whose output would meet or
	// exceed the output reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrUnauthorized reports a caller without a sufficient allowance for
	// the input transfer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransferFailed reports a failed ledger transfer.
	ErrTransferFailed = errors.New("ledger transfer failed")
	// ErrNotInitialized reports an operation against a pool with no
	// persisted pair state.
	ErrNotInitialized = errors.New("pool not initialized")
)
