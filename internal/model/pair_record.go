package model

import (
	"fmt"
	"math/big"
)

// PairRecord is the stored representation of a pool's pair state.
// Amounts are decimal strings so the record survives JSON and SQL
// round-trips without precision loss.
type PairRecord struct {
	Pool     string `json:"pool"`
	AssetX   string `json:"asset_x"`
	AssetY   string `json:"asset_y"`
	ReserveX string `json:"reserve_x"`
	ReserveY string `json:"reserve_y"`
	K        string `json:"k"`
}

// ParseAmount decodes a decimal string into a big.Int.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// FormatAmount encodes a big.Int as a decimal string.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
