// Package ingestion runs the periodic scan loop: fetch System Log records
// since the last checkpoint, feed them through the detection engine.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/detection"
	"github.com/AdeshRathod/OktaGuard/internal/models"
	"github.com/AdeshRathod/OktaGuard/internal/storage"
)

// LogSource fetches raw log records published after a checkpoint. A nil
// checkpoint asks the source for its default recent window.
type LogSource interface {
	FetchLogs(ctx context.Context, since *time.Time) ([]map[string]any, error)
}

// Worker drives scans on a fixed interval and on demand. Scan failures are
// logged and retried on the next tick; they never terminate the process.
type Worker struct {
	config *config.Config
	source LogSource
	engine *detection.Engine
	store  storage.DocumentStore
	logger *zap.Logger
}

// NewWorker creates a new scan worker
func NewWorker(cfg *config.Config, source LogSource, engine *detection.Engine, store storage.DocumentStore, logger *zap.Logger) *Worker {
	return &Worker{
		config: cfg,
		source: source,
		engine: engine,
		store:  store,
		logger: logger,
	}
}

// Start runs an immediate scan and then one per interval until the context
// is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(w.config.Scan.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("initial scan failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("scheduled scan failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single scan: read the checkpoint, fetch newer records,
// process them. A fetch failure aborts this attempt without touching
// persisted state.
func (w *Worker) RunOnce(ctx context.Context) ([]*models.Alert, error) {
	db, err := w.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	since := db.State.LastCheckpoint

	w.logger.Info("running scan", zap.Timep("since", since))

	logs, err := w.source.FetchLogs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	alerts, err := w.engine.ProcessLogs(ctx, logs)
	if err != nil {
		return nil, err
	}

	w.logger.Info("scan completed",
		zap.Int("logs", len(logs)),
		zap.Int("alerts", len(alerts)))
	return alerts, nil
}
