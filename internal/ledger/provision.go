package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/luoye/poolswap/internal/model"
)

// MemoryProvisioner creates Memory ledgers with deterministic addresses
// derived from the asset symbol, so repeated runs against the same
// configuration see the same asset id.
type MemoryProvisioner struct {
	// Ledgers collects every provisioned ledger keyed by asset id.
	Ledgers map[common.Address]*Memory
}

func NewMemoryProvisioner() *MemoryProvisioner {
	return &MemoryProvisioner{Ledgers: make(map[common.Address]*Memory)}
}

func (p *MemoryProvisioner) Provision(ctx context.Context, meta model.TokenMeta) (Ledger, common.Address, error) {
	if meta.Symbol == "" {
		return nil, common.Address{}, fmt.Errorf("asset symbol is required")
	}

	addr := common.BytesToAddress(crypto.Keccak256([]byte("asset:" + meta.Symbol))[12:])
	if _, ok := p.Ledgers[addr]; ok {
		return nil, common.Address{}, fmt.Errorf("asset %s already provisioned", meta.Symbol)
	}

	meta.Address = addr.Hex()
	l := NewMemory(meta)
	p.Ledgers[addr] = l
	return l, addr, nil
}
