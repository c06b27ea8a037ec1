// Package detection contains the stateful risk engine: the rule evaluators
// plus the per-user state they depend on across batches.
package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/models"
	"github.com/AdeshRathod/OktaGuard/internal/normalize"
	"github.com/AdeshRathod/OktaGuard/internal/storage"
)

// Remediator suspends an account in the identity provider.
type Remediator interface {
	Suspend(ctx context.Context, accountID string) error
}

// CountryResolver maps a source IP to an ISO country code. Used to enrich
// events that carry no geographical context of their own.
type CountryResolver interface {
	Country(ip string) (string, error)
}

// Engine feeds normalized events through the rules in a fixed order,
// collecting alerts and mutating the shared risk state. Exactly one batch
// may be in flight at a time; the scheduled scan, the on-demand rescan and
// manual remediation all serialize on the engine's lock.
type Engine struct {
	mu       sync.Mutex
	config   *config.Config
	store    storage.DocumentStore
	rules    []Rule
	resolver CountryResolver
	logger   *zap.Logger
}

// NewEngine creates an engine with the default rule set. The remediator and
// resolver may be nil; auto-suspension and country enrichment are then
// disabled.
func NewEngine(cfg *config.Config, store storage.DocumentStore, remediator Remediator, resolver CountryResolver, logger *zap.Logger) *Engine {
	location, err := time.LoadLocation(cfg.Detection.WorkHoursTZ)
	if err != nil {
		logger.Warn("invalid WORK_HOURS_TZ, falling back to process-local time",
			zap.String("tz", cfg.Detection.WorkHoursTZ),
			zap.Error(err))
		location = time.Local
	}

	return &Engine{
		config:   cfg,
		store:    store,
		resolver: resolver,
		logger:   logger,
		rules: []Rule{
			NewBruteForceRule(cfg),
			NewCompromiseRule(cfg, remediator, logger),
			NewGeographyRule(),
			NewWorkHoursRule(cfg, location),
		},
	}
}

// ProcessLogs runs one detection batch over raw log records, in input order,
// and returns exactly the alerts generated during this call. The risk state
// is loaded once before the batch and persisted once after it; a fault in a
// single event is logged and skipped, never aborting the batch.
func (e *Engine) ProcessLogs(ctx context.Context, raws []map[string]any) ([]*models.Alert, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk state: %w", err)
	}

	var emitted []*models.Alert
	for _, raw := range raws {
		event := normalize.Event(raw, time.Now())
		if event.Outcome == models.OutcomeUnknown {
			continue
		}
		e.enrich(&event)

		for _, rule := range e.rules {
			alerts, err := rule.Evaluate(ctx, &event, db.State)
			if err != nil {
				e.logger.Error("rule evaluation failed",
					zap.String("rule", rule.Name()),
					zap.String("username", event.Username),
					zap.Error(err))
				continue
			}
			for _, alert := range alerts {
				db.Alerts = append(db.Alerts, alert)
				emitted = append(emitted, alert)
			}
		}
	}

	now := time.Now().UTC()
	db.State.LastCheckpoint = &now

	if err := e.store.Save(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to persist risk state: %w", err)
	}

	return emitted, nil
}

// MarkRemediated sets suspended-manual on every alert belonging to the
// account and returns how many were updated. It takes the engine lock so a
// manual remediation never races a batch's load/save cycle.
func (e *Engine) MarkRemediated(ctx context.Context, accountID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := e.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load alerts: %w", err)
	}

	updated := 0
	for _, alert := range db.Alerts {
		if alert.AccountID == accountID {
			alert.ActionTaken = models.ActionSuspendedManual
			updated++
		}
	}
	if updated == 0 {
		return 0, nil
	}

	if err := e.store.Save(ctx, db); err != nil {
		return 0, fmt.Errorf("failed to persist alerts: %w", err)
	}
	return updated, nil
}

// enrich fills in the country from the source IP when the record carried no
// geographical context.
func (e *Engine) enrich(event *models.LogEvent) {
	if e.resolver == nil || event.Country != "" || event.SourceIP == "" {
		return
	}
	country, err := e.resolver.Country(event.SourceIP)
	if err != nil {
		e.logger.Debug("geoip lookup failed",
			zap.String("ip", event.SourceIP),
			zap.Error(err))
		return
	}
	event.Country = country
}
