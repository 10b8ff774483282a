package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/luoye/poolswap/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	rec := model.PairRecord{
		Pool:     "test",
		AssetX:   "0x1111111111111111111111111111111111111111",
		AssetY:   "0x2222222222222222222222222222222222222222",
		ReserveX: "100000",
		ReserveY: "100000",
		K:        "10000000000",
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("record missing after save")
	}
	if got != rec {
		t.Fatalf("round-trip mismatch: %+v != %+v", got, rec)
	}
}

func TestFileStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "pair_state.json"))

	first := model.PairRecord{Pool: "test", ReserveX: "1", ReserveY: "1", K: "1"}
	second := model.PairRecord{Pool: "test", ReserveX: "2", ReserveY: "3", K: "6"}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != second {
		t.Fatalf("got %+v, want %+v", got, second)
	}
}
