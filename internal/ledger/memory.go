package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luoye/poolswap/internal/model"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type allowanceEntry struct {
	amount *big.Int
	expiry time.Time
}

// Memory is an in-process Ledger. It backs tests and the local binary; the
// same interface is expected to front a platform-native asset contract in a
// hosted deployment.
type Memory struct {
	meta model.TokenMeta

	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]allowanceEntry
	totalSupply *big.Int
	now         func() time.Time
}

func NewMemory(meta model.TokenMeta) *Memory {
	return &Memory{
		meta:        meta,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]allowanceEntry),
		totalSupply: new(big.Int),
		now:         time.Now,
	}
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("amount %s: %w", amount, ErrNegativeAmount)
	}
	return nil
}

func (m *Memory) balanceOf(account common.Address) *big.Int {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Memory) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[to] = new(big.Int).Add(m.balanceOf(to), amount)
	m.totalSupply = new(big.Int).Add(m.totalSupply, amount)
	return nil
}

func (m *Memory) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.move(from, to, amount)
}

func (m *Memory) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	granted := m.liveAllowance(key)
	if granted.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s for %s of %s: %w",
			granted, spender.Hex(), amount, ErrInsufficientAllowance)
	}

	if err := m.move(from, to, amount); err != nil {
		return err
	}

	entry := m.allowances[key]
	entry.amount = new(big.Int).Sub(granted, amount)
	m.allowances[key] = entry
	return nil
}

func (m *Memory) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int, expiry time.Time) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowances[allowanceKey{owner: owner, spender: spender}] = allowanceEntry{
		amount: new(big.Int).Set(amount),
		expiry: expiry,
	}
	return nil
}

func (m *Memory) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.liveAllowance(allowanceKey{owner: owner, spender: spender})), nil
}

func (m *Memory) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.balanceOf(account)), nil
}

func (m *Memory) TotalSupply(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(m.totalSupply), nil
}

func (m *Memory) Meta(ctx context.Context) (model.TokenMeta, error) {
	return m.meta, nil
}

// move requires the caller to hold m.mu.
func (m *Memory) move(from, to common.Address, amount *big.Int) error {
	balance := m.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s of %s for %s: %w",
			balance, from.Hex(), amount, ErrInsufficientBalance)
	}

	m.balances[from] = new(big.Int).Sub(balance, amount)
	m.balances[to] = new(big.Int).Add(m.balanceOf(to), amount)
	return nil
}

// liveAllowance requires the caller to hold m.mu. Expired grants read as zero.
func (m *Memory) liveAllowance(key allowanceKey) *big.Int {
	entry, ok := m.allowances[key]
	if !ok {
		return new(big.Int)
	}
	if !entry.expiry.IsZero() && m.now().After(entry.expiry) {
		return new(big.Int)
	}
	return entry.amount
}
