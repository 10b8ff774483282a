package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luoye/poolswap/internal/model"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNegativeAmount        = errors.New("negative amount")
)

// Ledger is the fungible asset collaborator the pool engine moves value
// through. One instance per asset. Implementations must apply each call
// atomically: a failed call leaves balances and allowances unchanged.
type Ledger interface {
	// Mint issues new units to an account.
	Mint(ctx context.Context, to common.Address, amount *big.Int) error
	// Transfer moves units between accounts on the owner's own authority.
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	// TransferFrom moves units from an account using the spender's
	// allowance granted by that account.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	// Approve grants spender an allowance on owner's funds. A zero expiry
	// means the allowance does not expire.
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int, expiry time.Time) error
	// Allowance returns the live allowance from owner to spender.
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	Meta(ctx context.Context) (model.TokenMeta, error)
}

// Provisioner creates a fresh asset ledger at pool initialization. It stands
// in for whatever deployment mechanism the hosting platform provides.
type Provisioner interface {
	Provision(ctx context.Context, meta model.TokenMeta) (Ledger, common.Address, error)
}
