package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luoye/poolswap/internal/model"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func newTestLedger(t *testing.T) *Memory {
	t.Helper()
	return NewMemory(model.TokenMeta{Decimals: 18, Symbol: "TST", Name: "Test"})
}

func TestMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.Mint(ctx, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	supply, err := l.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply.Int64() != 1000 {
		t.Fatalf("supply = %s, want 1000", supply)
	}

	if err := l.Transfer(ctx, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	a, _ := l.Balance(ctx, alice)
	b, _ := l.Balance(ctx, bob)
	if a.Int64() != 600 || b.Int64() != 400 {
		t.Fatalf("balances = %s/%s, want 600/400", a, b)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.Mint(ctx, alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := l.Transfer(ctx, alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	a, _ := l.Balance(ctx, alice)
	if a.Int64() != 10 {
		t.Fatalf("failed transfer changed balance: %s", a)
	}
}

func TestTransferNegativeAmount(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.Transfer(ctx, alice, bob, big.NewInt(-5)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.Mint(ctx, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(ctx, alice, bob, big.NewInt(300), time.Time{}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := l.TransferFrom(ctx, bob, alice, carol, big.NewInt(200)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	remaining, _ := l.Allowance(ctx, alice, bob)
	if remaining.Int64() != 100 {
		t.Fatalf("allowance = %s, want 100", remaining)
	}

	err := l.TransferFrom(ctx, bob, alice, carol, big.NewInt(200))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}

	c, _ := l.Balance(ctx, carol)
	if c.Int64() != 200 {
		t.Fatalf("carol balance = %s, want 200", c)
	}
}

func TestExpiredAllowanceReadsZero(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	l.now = func() time.Time { return time.Unix(2000, 0) }

	if err := l.Mint(ctx, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(ctx, alice, bob, big.NewInt(300), time.Unix(1000, 0)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	granted, _ := l.Allowance(ctx, alice, bob)
	if granted.Sign() != 0 {
		t.Fatalf("expired allowance reads %s, want 0", granted)
	}

	err := l.TransferFrom(ctx, bob, alice, carol, big.NewInt(1))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
}

func TestProvisionerDeterministicAddress(t *testing.T) {
	ctx := context.Background()

	p1 := NewMemoryProvisioner()
	_, addr1, err := p1.Provision(ctx, model.TokenMeta{Symbol: "POOLX", Name: "X"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	p2 := NewMemoryProvisioner()
	_, addr2, err := p2.Provision(ctx, model.TokenMeta{Symbol: "POOLX", Name: "X"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if addr1 != addr2 {
		t.Fatalf("addresses differ: %s != %s", addr1.Hex(), addr2.Hex())
	}

	if _, _, err := p1.Provision(ctx, model.TokenMeta{Symbol: "POOLX"}); err == nil {
		t.Fatalf("expected duplicate provision to fail")
	}
}
