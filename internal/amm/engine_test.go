package amm

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/luoye/poolswap/internal/ledger"
	"github.com/luoye/poolswap/internal/model"
	"github.com/luoye/poolswap/internal/storage"
)

var (
	testPoolAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testCaller      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testPeerAsset   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type testPool struct {
	engine     *Engine
	store      storage.PairStore
	firstAsset common.Address
	first      ledger.Ledger
	peer       *ledger.Memory
	state      PairState
}

func newTestPool(t *testing.T) *testPool {
	t.Helper()
	ctx := context.Background()

	store := storage.NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))
	peer := ledger.NewMemory(model.TokenMeta{Address: testPeerAsset.Hex(), Decimals: 18, Symbol: "PEER", Name: "Peer"})
	prov := ledger.NewMemoryProvisioner()

	engine := New(store, testPoolAccount, "test", zap.NewNop())
	st, err := engine.Initialize(ctx, InitParams{
		PeerAsset:      testPeerAsset,
		PeerLedger:     peer,
		Provisioner:    prov,
		FirstAssetMeta: model.TokenMeta{Decimals: 18, Symbol: "POOLX", Name: "Pool Asset X"},
		ReserveX:       big.NewInt(100000),
		ReserveY:       big.NewInt(100000),
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// The peer asset is externally controlled; seed the pool's custody to
	// match the recorded reserve.
	if err := peer.Mint(ctx, testPoolAccount, big.NewInt(100000)); err != nil {
		t.Fatalf("mint peer reserve: %v", err)
	}

	return &testPool{
		engine:     engine,
		store:      store,
		firstAsset: st.AssetX,
		first:      prov.Ledgers[st.AssetX],
		peer:       peer,
		state:      st,
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	st, err := p.engine.PairState(ctx)
	if err != nil {
		t.Fatalf("pair state: %v", err)
	}

	if st.AssetX == st.AssetY {
		t.Fatalf("pair assets must differ")
	}
	if st.ReserveX.Int64() != 100000 || st.ReserveY.Int64() != 100000 {
		t.Fatalf("reserves = %s/%s, want 100000/100000", st.ReserveX, st.ReserveY)
	}
	if st.K.String() != "10000000000" {
		t.Fatalf("k = %s, want 10000000000", st.K)
	}

	balance, err := p.first.Balance(ctx, testPoolAccount)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 100000 {
		t.Fatalf("pool holding = %s, want 100000", balance)
	}
}

func TestInitializeTwiceRejected(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	_, err := p.engine.Initialize(ctx, InitParams{
		PeerAsset:      testPeerAsset,
		PeerLedger:     p.peer,
		Provisioner:    ledger.NewMemoryProvisioner(),
		FirstAssetMeta: model.TokenMeta{Symbol: "POOLX2"},
		ReserveX:       big.NewInt(1),
		ReserveY:       big.NewInt(1),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInitializeOverflowRejected(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))
	peer := ledger.NewMemory(model.TokenMeta{Symbol: "PEER"})

	engine := New(store, testPoolAccount, "overflow", zap.NewNop())
	_, err := engine.Initialize(ctx, InitParams{
		PeerAsset:      testPeerAsset,
		PeerLedger:     peer,
		Provisioner:    ledger.NewMemoryProvisioner(),
		FirstAssetMeta: model.TokenMeta{Symbol: "POOLX"},
		ReserveX:       new(big.Int).Set(maxInt128),
		ReserveY:       big.NewInt(2),
	})
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}

	if _, ok, loadErr := store.Load(ctx); loadErr != nil || ok {
		t.Fatalf("failed initialization must not persist state (ok=%v err=%v)", ok, loadErr)
	}
}

func TestInitializeNonPositiveReservesRejected(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))
	peer := ledger.NewMemory(model.TokenMeta{Symbol: "PEER"})

	engine := New(store, testPoolAccount, "zero", zap.NewNop())
	_, err := engine.Initialize(ctx, InitParams{
		PeerAsset:      testPeerAsset,
		PeerLedger:     peer,
		Provisioner:    ledger.NewMemoryProvisioner(),
		FirstAssetMeta: model.TokenMeta{Symbol: "POOLX"},
		ReserveX:       big.NewInt(0),
		ReserveY:       big.NewInt(100000),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPairStateNotInitialized(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))

	engine := New(store, testPoolAccount, "empty", zap.NewNop())
	if _, err := engine.PairState(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := engine.Quote(ctx, DirectionXIn, big.NewInt(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := engine.Swap(ctx, testCaller, DirectionXIn, big.NewInt(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestEnginesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := newTestPool(t)
	b := newTestPool(t)

	fundAndApprove(t, a, testCaller, DirectionYIn, big.NewInt(50000))
	if _, err := a.engine.Swap(ctx, testCaller, DirectionYIn, big.NewInt(50000)); err != nil {
		t.Fatalf("swap: %v", err)
	}

	stB, err := b.engine.PairState(ctx)
	if err != nil {
		t.Fatalf("pair state: %v", err)
	}
	if stB.ReserveX.Int64() != 100000 || stB.ReserveY.Int64() != 100000 {
		t.Fatalf("pool b moved: %s/%s", stB.ReserveX, stB.ReserveY)
	}
}

func TestQuoteDoesNotMutateState(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	before, _, err := p.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := p.engine.Quote(ctx, DirectionYIn, big.NewInt(50000)); err != nil {
		t.Fatalf("quote: %v", err)
	}

	after, _, err := p.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if before != after {
		t.Fatalf("quote mutated state: %+v != %+v", before, after)
	}
}

func TestQuoteIn(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	in, err := p.engine.QuoteIn(ctx, DirectionYIn, big.NewInt(33334))
	if err != nil {
		t.Fatalf("quote in: %v", err)
	}

	out, err := p.engine.Quote(ctx, DirectionYIn, in)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(big.NewInt(33334)) < 0 {
		t.Fatalf("quoted input %s yields %s, want >= 33334", in, out)
	}

	if _, err := p.engine.QuoteIn(ctx, DirectionYIn, big.NewInt(100000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestSpotPrice(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	price, err := p.engine.SpotPrice(ctx, DirectionXIn)
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	if price.String() != "1" {
		t.Fatalf("spot price = %s, want 1", price)
	}
}

// fundAndApprove mints amount of the input asset to account and grants the
// pool an allowance for it.
func fundAndApprove(t *testing.T, p *testPool, account common.Address, dir Direction, amount *big.Int) {
	t.Helper()
	ctx := context.Background()

	in := ledger.Ledger(p.peer)
	if dir == DirectionXIn {
		in = p.first
	}
	if err := in.Mint(ctx, account, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := in.Approve(ctx, account, testPoolAccount, amount, time.Time{}); err != nil {
		t.Fatalf("approve: %v", err)
	}
}
