package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/models"
)

// Rule defines a detection rule interface. Rules run only against SUCCESS or
// FAILURE events and may mutate the shared risk state; each rule decides for
// itself which outcomes it applies to.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, event *models.LogEvent, state *models.RiskState) ([]*models.Alert, error)
}

func newAlert(event *models.LogEvent, riskType models.RiskType, severity models.Severity, description string) *models.Alert {
	return &models.Alert{
		ID:          uuid.NewString(),
		AccountID:   event.AccountID,
		Username:    event.Username,
		RiskType:    riskType,
		Description: description,
		Timestamp:   event.Timestamp,
		Severity:    severity,
	}
}

// BruteForceRule detects repeated failed logins for the same username within
// a sliding window.
type BruteForceRule struct {
	config *config.Config
}

func NewBruteForceRule(cfg *config.Config) *BruteForceRule {
	return &BruteForceRule{config: cfg}
}

func (r *BruteForceRule) Name() string {
	return "brute_force"
}

func (r *BruteForceRule) Evaluate(ctx context.Context, event *models.LogEvent, state *models.RiskState) ([]*models.Alert, error) {
	if event.Outcome != models.OutcomeFailure || event.Username == "" {
		return nil, nil
	}

	state.RecordFailure(event.Username, event.Timestamp, event.SourceIP)

	// The window is anchored on wall-clock time, not the event timestamp.
	window := time.Duration(r.config.Detection.BruteForceWindowMin) * time.Minute
	count := state.PruneFailures(event.Username, time.Now().Add(-window))

	if count >= r.config.Detection.BruteForceThreshold {
		alert := newAlert(event, models.RiskBruteForceSuspected, models.SeverityHigh,
			fmt.Sprintf("Detected %d failed attempts within %dm", count, r.config.Detection.BruteForceWindowMin))
		return []*models.Alert{alert}, nil
	}

	return nil, nil
}

// CompromiseRule detects a successful login that follows a burst of failed
// attempts and, when configured, suspends the account.
type CompromiseRule struct {
	config     *config.Config
	remediator Remediator
	logger     *zap.Logger
}

func NewCompromiseRule(cfg *config.Config, remediator Remediator, logger *zap.Logger) *CompromiseRule {
	return &CompromiseRule{config: cfg, remediator: remediator, logger: logger}
}

func (r *CompromiseRule) Name() string {
	return "brute_force_compromise"
}

func (r *CompromiseRule) Evaluate(ctx context.Context, event *models.LogEvent, state *models.RiskState) ([]*models.Alert, error) {
	if event.Outcome != models.OutcomeSuccess || event.Username == "" {
		return nil, nil
	}

	// The history length is read as-is, without re-pruning against the
	// window first.
	count := state.FailureCount(event.Username)
	if count == 0 || count < r.config.Detection.BruteForceThreshold {
		return nil, nil
	}

	alert := newAlert(event, models.RiskAccountCompromise, models.SeverityCritical,
		fmt.Sprintf("Succeeded after %d recent failures - possible credential stuffing or brute-force.", count))

	if r.config.Detection.SuspendOnHighRisk && event.AccountID != "" && r.remediator != nil {
		if err := r.remediator.Suspend(ctx, event.AccountID); err != nil {
			r.logger.Error("remediation failed",
				zap.String("account_id", event.AccountID),
				zap.Error(err))
			alert.ActionTaken = models.ActionSuspendFailed
		} else {
			alert.ActionTaken = models.ActionSuspended
		}
	}

	// Reset regardless of the remediation outcome.
	state.ClearFailures(event.Username)

	return []*models.Alert{alert}, nil
}

// GeographyRule detects successful logins from a country the account has not
// been seen in before.
type GeographyRule struct{}

func NewGeographyRule() *GeographyRule {
	return &GeographyRule{}
}

func (r *GeographyRule) Name() string {
	return "unusual_geography"
}

func (r *GeographyRule) Evaluate(ctx context.Context, event *models.LogEvent, state *models.RiskState) ([]*models.Alert, error) {
	if event.Outcome != models.OutcomeSuccess || event.AccountID == "" || event.Country == "" {
		return nil, nil
	}

	if state.KnowsCountry(event.AccountID, event.Country) {
		return nil, nil
	}

	alert := newAlert(event, models.RiskUnusualGeography, models.SeverityHigh,
		fmt.Sprintf("Login from new country: %s", event.Country))
	state.AddCountry(event.AccountID, event.Country)

	return []*models.Alert{alert}, nil
}

// WorkHoursRule detects successful logins outside the configured working
// hours, evaluated in the configured time zone.
type WorkHoursRule struct {
	config   *config.Config
	location *time.Location
}

func NewWorkHoursRule(cfg *config.Config, location *time.Location) *WorkHoursRule {
	if location == nil {
		location = time.Local
	}
	return &WorkHoursRule{config: cfg, location: location}
}

func (r *WorkHoursRule) Name() string {
	return "outside_business_hours"
}

func (r *WorkHoursRule) Evaluate(ctx context.Context, event *models.LogEvent, state *models.RiskState) ([]*models.Alert, error) {
	if event.Outcome != models.OutcomeSuccess {
		return nil, nil
	}
	// Records with malformed timestamps skip this rule only.
	if !event.TimestampValid {
		return nil, nil
	}

	hour := event.Timestamp.In(r.location).Hour()
	start := r.config.Detection.WorkHourStart
	end := r.config.Detection.WorkHourEnd

	if hour < start || hour >= end {
		alert := newAlert(event, models.RiskOutsideWorkHours, models.SeverityMedium,
			fmt.Sprintf("Login at %d:00 which is outside working hours (%d-%d)", hour, start, end))
		return []*models.Alert{alert}, nil
	}

	return nil, nil
}
