package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/luoye/poolswap/internal/model"
)

// FileStore keeps the pair record in a local JSON file. Writes go through a
// temp file and rename so a crash never leaves a torn record.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (model.PairRecord, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PairRecord{}, false, nil
		}
		return model.PairRecord{}, false, fmt.Errorf("read pair state: %w", err)
	}

	var rec model.PairRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PairRecord{}, false, fmt.Errorf("parse pair state: %w", err)
	}
	return rec, true, nil
}

func (s *FileStore) Save(ctx context.Context, rec model.PairRecord) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pair state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write pair state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename pair state: %w", err)
	}
	return nil
}
