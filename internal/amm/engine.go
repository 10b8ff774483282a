package amm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/luoye/poolswap/internal/ledger"
	"github.com/luoye/poolswap/internal/model"
	"github.com/luoye/poolswap/internal/storage"
)

// PairState is the in-memory form of the pool's single durable record.
type PairState struct {
	AssetX   common.Address
	AssetY   common.Address
	ReserveX *big.Int
	ReserveY *big.Int
	K        *big.Int
}

func (s PairState) reserves(dir Direction) (reserveIn, reserveOut *big.Int) {
	if dir == DirectionXIn {
		return s.ReserveX, s.ReserveY
	}
	return s.ReserveY, s.ReserveX
}

// Engine prices and executes swaps against one pair record. It owns no
// global state: every instance is an independent pool bound to its own
// store, ledgers, and custody account.
type Engine struct {
	store   storage.PairStore
	account common.Address
	name    string
	logger  *zap.Logger

	mu      sync.Mutex
	ledgers map[common.Address]ledger.Ledger
}

// New builds an Engine. account is the pool's own custody account on both
// asset ledgers; name keys the persisted record.
func New(store storage.PairStore, account common.Address, name string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		account: account,
		name:    name,
		logger:  logger,
		ledgers: make(map[common.Address]ledger.Ledger),
	}
}

// Name returns the pool name the persisted record is keyed by.
func (e *Engine) Name() string {
	return e.name
}

// AttachLedger binds the ledger instance for an asset. Both pair assets must
// be attached before Swap can move funds.
func (e *Engine) AttachLedger(asset common.Address, l ledger.Ledger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledgers[asset] = l
}

// InitParams configures pool initialization.
type InitParams struct {
	// PeerAsset identifies the externally controlled second asset.
	PeerAsset common.Address
	// PeerLedger is the ledger instance for PeerAsset.
	PeerLedger ledger.Ledger
	// Provisioner creates the first asset's ledger.
	Provisioner ledger.Provisioner
	// FirstAssetMeta is the metadata for the provisioned first asset.
	FirstAssetMeta model.TokenMeta
	// ReserveX and ReserveY seed the pool.
	ReserveX *big.Int
	ReserveY *big.Int
}

// Initialize provisions the first asset, mints the pool's initial holding of
// it, seeds both reserves, and persists the pair record. It fails without
// side effects on the store if the pool already exists, the seed amounts are
// not positive, the assets collide, or the invariant overflows.
func (e *Engine) Initialize(ctx context.Context, params InitParams) (PairState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok, err := e.store.Load(ctx); err != nil {
		return PairState{}, fmt.Errorf("load pair state: %w", err)
	} else if ok {
		return PairState{}, fmt.Errorf("pool %s already initialized: %w", e.name, ErrInvalidInput)
	}

	if params.ReserveX == nil || params.ReserveX.Sign() <= 0 ||
		params.ReserveY == nil || params.ReserveY.Sign() <= 0 {
		return PairState{}, fmt.Errorf("initial reserves must be positive: %w", ErrInvalidInput)
	}
	if !fitsInt128(params.ReserveX) || !fitsInt128(params.ReserveY) {
		return PairState{}, fmt.Errorf("initial reserves out of range: %w", ErrOverflow)
	}
	if params.Provisioner == nil || params.PeerLedger == nil {
		return PairState{}, fmt.Errorf("provisioner and peer ledger are required: %w", ErrInvalidInput)
	}

	firstLedger, firstAsset, err := params.Provisioner.Provision(ctx, params.FirstAssetMeta)
	if err != nil {
		return PairState{}, fmt.Errorf("provision first asset: %w", err)
	}
	if firstAsset == params.PeerAsset {
		return PairState{}, fmt.Errorf("pair assets must differ: %w", ErrInvalidInput)
	}

	k, err := checkedMul(params.ReserveX, params.ReserveY)
	if err != nil {
		return PairState{}, fmt.Errorf("initial invariant: %w", err)
	}

	if err := firstLedger.Mint(ctx, e.account, params.ReserveX); err != nil {
		return PairState{}, fmt.Errorf("mint initial reserve: %w", err)
	}

	st := PairState{
		AssetX:   firstAsset,
		AssetY:   params.PeerAsset,
		ReserveX: new(big.Int).Set(params.ReserveX),
		ReserveY: new(big.Int).Set(params.ReserveY),
		K:        k,
	}
	if err := e.store.Save(ctx, e.toRecord(st)); err != nil {
		return PairState{}, fmt.Errorf("save pair state: %w", err)
	}

	e.ledgers[firstAsset] = firstLedger
	e.ledgers[params.PeerAsset] = params.PeerLedger

	e.logger.Info("pool initialized",
		zap.String("pool", e.name),
		zap.String("asset_x", st.AssetX.Hex()),
		zap.String("asset_y", st.AssetY.Hex()),
		zap.String("reserve_x", st.ReserveX.String()),
		zap.String("reserve_y", st.ReserveY.String()),
		zap.String("k", st.K.String()),
	)

	return st, nil
}

// PairState returns the current persisted state verbatim.
func (e *Engine) PairState(ctx context.Context) (PairState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadState(ctx)
}

// loadState requires e.mu held.
func (e *Engine) loadState(ctx context.Context) (PairState, error) {
	rec, ok, err := e.store.Load(ctx)
	if err != nil {
		return PairState{}, fmt.Errorf("load pair state: %w", err)
	}
	if !ok {
		return PairState{}, fmt.Errorf("pool %s: %w", e.name, ErrNotInitialized)
	}
	return e.fromRecord(rec)
}

func (e *Engine) toRecord(st PairState) model.PairRecord {
	return model.PairRecord{
		Pool:     e.name,
		AssetX:   st.AssetX.Hex(),
		AssetY:   st.AssetY.Hex(),
		ReserveX: model.FormatAmount(st.ReserveX),
		ReserveY: model.FormatAmount(st.ReserveY),
		K:        model.FormatAmount(st.K),
	}
}

func (e *Engine) fromRecord(rec model.PairRecord) (PairState, error) {
	if !common.IsHexAddress(rec.AssetX) || !common.IsHexAddress(rec.AssetY) {
		return PairState{}, fmt.Errorf("pair record has malformed asset ids")
	}

	reserveX, err := model.ParseAmount(rec.ReserveX)
	if err != nil {
		return PairState{}, fmt.Errorf("pair record reserve_x: %w", err)
	}
	reserveY, err := model.ParseAmount(rec.ReserveY)
	if err != nil {
		return PairState{}, fmt.Errorf("pair record reserve_y: %w", err)
	}
	k, err := model.ParseAmount(rec.K)
	if err != nil {
		return PairState{}, fmt.Errorf("pair record k: %w", err)
	}

	return PairState{
		AssetX:   common.HexToAddress(rec.AssetX),
		AssetY:   common.HexToAddress(rec.AssetY),
		ReserveX: reserveX,
		ReserveY: reserveY,
		K:        k,
	}, nil
}
