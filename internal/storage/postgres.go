package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore keeps the document in a single JSONB row. The table is
// created on open so no separate migration step is needed.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and ensures the document table exists.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS guard_document (
			id  INT PRIMARY KEY,
			doc JSONB NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create document table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Load reads the document row, materializing empty defaults on cold start.
func (s *PostgresStore) Load(ctx context.Context) (*Database, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM guard_document WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return NewDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	db.ensureDefaults()
	return &db, nil
}

// Save overwrites the document row, last writer wins.
func (s *PostgresStore) Save(ctx context.Context, db *Database) error {
	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guard_document (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, data)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
