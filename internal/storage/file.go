package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the document in a single JSON file. This is the default
// backend; it needs no external services and survives restarts.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed document store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the document, materializing empty defaults when the file does
// not exist yet.
func (s *FileStore) Load(ctx context.Context) (*Database, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	db.ensureDefaults()
	return &db, nil
}

// Save overwrites the document, creating parent directories on first write.
func (s *FileStore) Save(ctx context.Context, db *Database) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}
