package storage

import (
	"context"

	"github.com/luoye/poolswap/internal/model"
)

// PairStore persists the single pair-state record a pool owns. Load reports
// ok=false when the pool has never been initialized. Save replaces the whole
// record; partial writes are not permitted.
type PairStore interface {
	Load(ctx context.Context) (model.PairRecord, bool, error)
	Save(ctx context.Context, rec model.PairRecord) error
}
