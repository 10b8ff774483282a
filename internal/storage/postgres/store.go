package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luoye/poolswap/internal/model"
)

// Store provides Postgres persistence for the pair record. Each pool is one
// row keyed by its name, replaced whole on every save.
type Store struct {
	pool *pgxpool.Pool
	name string
}

func NewStore(ctx context.Context, dsn, name string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, name: name}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the pair_state table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pair_state (
			pool_name text PRIMARY KEY,
			asset_x text NOT NULL,
			asset_y text NOT NULL,
			reserve_x numeric(40,0) NOT NULL,
			reserve_y numeric(40,0) NOT NULL,
			k numeric(80,0) NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure pair_state schema: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (model.PairRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT asset_x, asset_y, reserve_x::text, reserve_y::text, k::text
		FROM pair_state WHERE pool_name=$1
	`, s.name)

	rec := model.PairRecord{Pool: s.name}
	err := row.Scan(&rec.AssetX, &rec.AssetY, &rec.ReserveX, &rec.ReserveY, &rec.K)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PairRecord{}, false, nil
		}
		return model.PairRecord{}, false, fmt.Errorf("load pair state: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Save(ctx context.Context, rec model.PairRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pair_state (pool_name, asset_x, asset_y, reserve_x, reserve_y, k, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, now())
		ON CONFLICT (pool_name)
		DO UPDATE SET
			asset_x = EXCLUDED.asset_x,
			asset_y = EXCLUDED.asset_y,
			reserve_x = EXCLUDED.reserve_x,
			reserve_y = EXCLUDED.reserve_y,
			k = EXCLUDED.k,
			updated_at = now()
	`,
		s.name,
		rec.AssetX,
		rec.AssetY,
		rec.ReserveX,
		rec.ReserveY,
		rec.K,
	)
	if err != nil {
		return fmt.Errorf("save pair state: %w", err)
	}
	return nil
}
