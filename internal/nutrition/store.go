package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store reads and writes the nutrition JSON document. It keeps nothing in
// memory: every Load goes back to disk so rebuilt documents are picked up
// without a restart.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the label-keyed records. A missing document yields an empty
// map and no error.
func (s *Store) Load(ctx context.Context) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read nutrients db: %w", err)
	}

	db := make(map[string]Record)
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse nutrients db: %w", err)
	}
	for label, rec := range db {
		rec.Label = label
		db[label] = rec
	}
	return db, nil
}

// Save replaces the document with db. The write goes through a temp file in
// the same directory so readers never observe a partial document.
func (s *Store) Save(ctx context.Context, db map[string]Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(db, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal nutrients db: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create nutrients db directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".nutrients-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write nutrients db: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set nutrients db permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close nutrients db: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace nutrients db: %w", err)
	}
	return nil
}
