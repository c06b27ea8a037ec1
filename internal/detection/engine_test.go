package detection_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AdeshRathod/OktaGuard/internal/config"
	"github.com/AdeshRathod/OktaGuard/internal/detection"
	"github.com/AdeshRathod/OktaGuard/internal/models"
	"github.com/AdeshRathod/OktaGuard/internal/storage"
)

// memStore is an in-memory DocumentStore that hands out deep copies, the way
// a real backend re-parses the persisted document on every load.
type memStore struct {
	db      *storage.Database
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(ctx context.Context) (*storage.Database, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.db == nil {
		return storage.NewDatabase(), nil
	}
	data, err := json.Marshal(m.db)
	if err != nil {
		return nil, err
	}
	var db storage.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, err
	}
	db.State.EnsureDefaults()
	return &db, nil
}

func (m *memStore) Save(ctx context.Context, db *storage.Database) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.db = db
	return nil
}

func engineConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			BruteForceThreshold: 5,
			BruteForceWindowMin: 5,
			// Disable the work-hours rule so batch assertions do not
			// depend on the hour the tests run at.
			WorkHourStart:     0,
			WorkHourEnd:       24,
			WorkHoursTZ:       "UTC",
			SuspendOnHighRisk: true,
		},
	}
}

func rawFailure(username, accountID, ip string) map[string]any {
	return map[string]any{
		"published": time.Now().UTC().Format(time.RFC3339Nano),
		"outcome":   map[string]any{"result": "FAILURE"},
		"actor":     map[string]any{"alternateId": username, "id": accountID},
		"client":    map[string]any{"ip": ip},
	}
}

func rawSuccess(username, accountID, country string) map[string]any {
	raw := map[string]any{
		"published": time.Now().UTC().Format(time.RFC3339Nano),
		"outcome":   map[string]any{"result": "SUCCESS"},
		"actor":     map[string]any{"alternateId": username, "id": accountID},
	}
	if country != "" {
		raw["client"] = map[string]any{
			"geographicalContext": map[string]any{"country": country},
		}
	}
	return raw
}

func riskTypes(alerts []*models.Alert) []models.RiskType {
	types := make([]models.RiskType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.RiskType)
	}
	return types
}

func TestEngine_EmptyInputDoesNotTouchState(t *testing.T) {
	store := &memStore{}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	alerts, err := engine.ProcessLogs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Zero(t, store.loads)
	assert.Zero(t, store.saves)
}

func TestEngine_BruteForceThenCompromise(t *testing.T) {
	store := &memStore{}
	remediator := &fakeRemediator{}
	engine := detection.NewEngine(engineConfig(), store, remediator, nil, zap.NewNop())
	ctx := context.Background()

	batch := []map[string]any{
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.2"),
		rawFailure("alice", "u1", "203.0.113.2"),
	}

	alerts, err := engine.ProcessLogs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, []models.RiskType{models.RiskBruteForceSuspected}, riskTypes(alerts))

	// A sixth failure keeps firing, then the success flags the compromise
	// and clears the history.
	alerts, err = engine.ProcessLogs(ctx, []map[string]any{
		rawFailure("alice", "u1", "203.0.113.3"),
		rawSuccess("alice", "u1", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.RiskType{
		models.RiskBruteForceSuspected,
		models.RiskAccountCompromise,
	}, riskTypes(alerts))
	assert.Equal(t, []string{"u1"}, remediator.calls)
	assert.Equal(t, models.ActionSuspended, alerts[1].ActionTaken)

	// State and all alerts were persisted.
	require.NotNil(t, store.db)
	assert.Len(t, store.db.Alerts, 3)
	assert.Equal(t, 0, store.db.State.FailureCount("alice"))
	assert.NotNil(t, store.db.State.LastCheckpoint)
}

func TestEngine_SingleLoadSavePerBatch(t *testing.T) {
	store := &memStore{}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	batch := []map[string]any{
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("bob", "u2", "203.0.113.1"),
		rawSuccess("carol", "u3", "US"),
	}

	_, err := engine.ProcessLogs(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, store.saves)
}

func TestEngine_UnusualGeography(t *testing.T) {
	store := &memStore{}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())
	ctx := context.Background()

	alerts, err := engine.ProcessLogs(ctx, []map[string]any{
		rawSuccess("alice", "u1", "US"),
		rawSuccess("alice", "u1", "US"),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.RiskType{models.RiskUnusualGeography}, riskTypes(alerts),
		"first sighting fires, repeat does not")

	alerts, err = engine.ProcessLogs(ctx, []map[string]any{
		rawSuccess("alice", "u1", "FR"),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.RiskType{models.RiskUnusualGeography}, riskTypes(alerts))
	assert.Equal(t, []string{"US", "FR"}, store.db.State.KnownCountries["u1"])
}

func TestEngine_OutsideWorkHours(t *testing.T) {
	cfg := engineConfig()
	cfg.Detection.WorkHourStart = 9
	cfg.Detection.WorkHourEnd = 18

	store := &memStore{}
	engine := detection.NewEngine(cfg, store, nil, nil, zap.NewNop())
	ctx := context.Background()

	night := rawSuccess("alice", "u1", "")
	night["published"] = "2026-03-02T03:00:00Z"
	alerts, err := engine.ProcessLogs(ctx, []map[string]any{night})
	require.NoError(t, err)
	assert.Equal(t, []models.RiskType{models.RiskOutsideWorkHours}, riskTypes(alerts))

	day := rawSuccess("alice", "u1", "")
	day["published"] = "2026-03-02T10:00:00Z"
	alerts, err = engine.ProcessLogs(ctx, []map[string]any{day})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_UnknownOutcomeEvaluatesNoRules(t *testing.T) {
	store := &memStore{}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	alerts, err := engine.ProcessLogs(context.Background(), []map[string]any{
		{"eventType": "system.api_token.create"},
		{"outcome": map[string]any{"result": "CHALLENGE"}},
	})

	require.NoError(t, err)
	assert.Empty(t, alerts)
	// The batch itself still ran: the checkpoint advances.
	require.NotNil(t, store.db)
	assert.NotNil(t, store.db.State.LastCheckpoint)
}

func TestEngine_ReplayReproducesAlerts(t *testing.T) {
	batch := []map[string]any{
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawFailure("alice", "u1", "203.0.113.1"),
		rawSuccess("bob", "u2", "DE"),
	}

	first, err := detection.NewEngine(engineConfig(), &memStore{}, nil, nil, zap.NewNop()).
		ProcessLogs(context.Background(), batch)
	require.NoError(t, err)

	second, err := detection.NewEngine(engineConfig(), &memStore{}, nil, nil, zap.NewNop()).
		ProcessLogs(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, riskTypes(first), riskTypes(second))
}

func TestEngine_StorageFaultSurfaces(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk gone")}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	_, err := engine.ProcessLogs(context.Background(), []map[string]any{rawSuccess("alice", "u1", "US")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load risk state")
}

func TestEngine_MarkRemediated(t *testing.T) {
	store := &memStore{db: &storage.Database{
		Alerts: []*models.Alert{
			{ID: "a1", AccountID: "u1", RiskType: models.RiskBruteForceSuspected},
			{ID: "a2", AccountID: "u2", RiskType: models.RiskUnusualGeography},
			{ID: "a3", AccountID: "u1", RiskType: models.RiskAccountCompromise, ActionTaken: models.ActionSuspendFailed},
		},
		State: models.NewRiskState(),
	}}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	updated, err := engine.MarkRemediated(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, models.ActionSuspendedManual, store.db.Alerts[0].ActionTaken)
	assert.Empty(t, store.db.Alerts[1].ActionTaken)
	assert.Equal(t, models.ActionSuspendedManual, store.db.Alerts[2].ActionTaken)
}

func TestEngine_MarkRemediatedNoMatches(t *testing.T) {
	store := &memStore{}
	engine := detection.NewEngine(engineConfig(), store, nil, nil, zap.NewNop())

	updated, err := engine.MarkRemediated(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, store.saves, "nothing to persist when no alert matched")
}
