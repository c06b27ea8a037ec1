// Package storage persists the alert log and detection state as a single
// document with whole-document read/write semantics. No backend performs
// partial updates or merging; the last writer wins. Implementations are not
// thread-safe by contract, the detection engine serializes all access.
package storage

import (
	"context"
	"fmt"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/models"
)

// Database is the persisted document: the append-only alert log plus the
// detection state.
type Database struct {
	Alerts []*models.Alert   `json:"alerts"`
	State  *models.RiskState `json:"state"`
}

// NewDatabase creates an empty document with all defaults materialized.
func NewDatabase() *Database {
	return &Database{
		Alerts: []*models.Alert{},
		State:  models.NewRiskState(),
	}
}

// ensureDefaults repairs a document loaded from an older or hand-edited
// store so callers never see nil fields.
func (d *Database) ensureDefaults() {
	if d.Alerts == nil {
		d.Alerts = []*models.Alert{}
	}
	if d.State == nil {
		d.State = models.NewRiskState()
	}
	d.State.EnsureDefaults()
}

// DocumentStore reads and writes the whole document.
type DocumentStore interface {
	Load(ctx context.Context) (*Database, error)
	Save(ctx context.Context, db *Database) error
}

// Open creates the document store selected by the configuration.
func Open(cfg *config.Config) (DocumentStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Storage.FilePath), nil
	case config.BackendPostgres:
		return NewPostgresStore(cfg.Storage.DatabaseURL)
	case config.BackendRedis:
		return NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
