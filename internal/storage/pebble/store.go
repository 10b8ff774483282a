package pebble

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/luoye/poolswap/internal/model"
)

var pairKey = []byte("pair-state")

// Store keeps the pair record in an embedded pebble database. Writes are
// synced so a committed swap survives process crash.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (model.PairRecord, bool, error) {
	data, closer, err := s.db.Get(pairKey)
	if err != nil {
		if err == pebble.ErrNotFound {
			return model.PairRecord{}, false, nil
		}
		return model.PairRecord{}, false, fmt.Errorf("read pair state: %w", err)
	}
	defer closer.Close()

	var rec model.PairRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PairRecord{}, false, fmt.Errorf("parse pair state: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Save(ctx context.Context, rec model.PairRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pair state: %w", err)
	}
	if err := s.db.Set(pairKey, data, pebble.Sync); err != nil {
		return fmt.Errorf("write pair state: %w", err)
	}
	return nil
}
