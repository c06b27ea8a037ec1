package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AdeshRathod/OktaGuard/internal/models"
	"github.com/AdeshRathod/OktaGuard/internal/normalize"
)

func TestEvent_FullRecord(t *testing.T) {
	now := time.Now()
	raw := map[string]any{
		"published": "2026-03-01T14:30:00.000Z",
		"outcome":   map[string]any{"result": "SUCCESS"},
		"actor":     map[string]any{"alternateId": "alice@example.com", "id": "u1"},
		"client": map[string]any{
			"ip": "203.0.113.1",
			"geographicalContext": map[string]any{
				"country": "US",
			},
		},
	}

	event := normalize.Event(raw, now)

	assert.Equal(t, "alice@example.com", event.Username)
	assert.Equal(t, "u1", event.AccountID)
	assert.Equal(t, "203.0.113.1", event.SourceIP)
	assert.Equal(t, "US", event.Country)
	assert.Equal(t, models.OutcomeSuccess, event.Outcome)
	assert.True(t, event.TimestampValid)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), event.Timestamp.UTC())
}

func TestEvent_FallbackChains(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		raw  map[string]any
		want models.LogEvent
	}{
		{
			name: "username and account from first target",
			raw: map[string]any{
				"target": []any{
					map[string]any{"displayName": "Bob", "id": "u2"},
					map[string]any{"displayName": "ignored", "id": "ignored"},
				},
			},
			want: models.LogEvent{Username: "Bob", AccountID: "u2"},
		},
		{
			name: "actor wins over target",
			raw: map[string]any{
				"actor":  map[string]any{"alternateId": "alice@example.com", "id": "u1"},
				"target": []any{map[string]any{"displayName": "Bob", "id": "u2"}},
			},
			want: models.LogEvent{Username: "alice@example.com", AccountID: "u1"},
		},
		{
			name: "ip falls back to request",
			raw: map[string]any{
				"request": map[string]any{"ip": "198.51.100.7"},
			},
			want: models.LogEvent{SourceIP: "198.51.100.7"},
		},
		{
			name: "country from client.geo",
			raw: map[string]any{
				"client": map[string]any{
					"geo": map[string]any{"country": "FR"},
				},
			},
			want: models.LogEvent{Country: "FR"},
		},
		{
			name: "country from top-level geographicalContext",
			raw: map[string]any{
				"geographicalContext": map[string]any{"country": "DE"},
			},
			want: models.LogEvent{Country: "DE"},
		},
		{
			name: "geographicalContext wins over geo",
			raw: map[string]any{
				"client": map[string]any{
					"geographicalContext": map[string]any{"country": "US"},
					"geo":                 map[string]any{"country": "FR"},
				},
			},
			want: models.LogEvent{Country: "US"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := normalize.Event(tt.raw, now)
			assert.Equal(t, tt.want.Username, event.Username)
			assert.Equal(t, tt.want.AccountID, event.AccountID)
			assert.Equal(t, tt.want.SourceIP, event.SourceIP)
			assert.Equal(t, tt.want.Country, event.Country)
		})
	}
}

func TestEvent_Outcome(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want models.Outcome
	}{
		{"lowercase success", map[string]any{"outcome": map[string]any{"result": "success"}}, models.OutcomeSuccess},
		{"uppercase success", map[string]any{"outcome": map[string]any{"result": "SUCCESS"}}, models.OutcomeSuccess},
		{"mixed case failure", map[string]any{"outcome": map[string]any{"result": "Failure"}}, models.OutcomeFailure},
		{"other result", map[string]any{"outcome": map[string]any{"result": "DENY"}}, models.OutcomeUnknown},
		{"missing outcome", map[string]any{}, models.OutcomeUnknown},
		{"outcome wrong shape", map[string]any{"outcome": "success"}, models.OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := normalize.Event(tt.raw, time.Now())
			assert.Equal(t, tt.want, event.Outcome)
		})
	}
}

func TestEvent_Timestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing published defaults to processing time", func(t *testing.T) {
		event := normalize.Event(map[string]any{}, now)
		assert.True(t, event.TimestampValid)
		assert.Equal(t, now, event.Timestamp)
	})

	t.Run("malformed published is flagged invalid", func(t *testing.T) {
		event := normalize.Event(map[string]any{"published": "not-a-date"}, now)
		assert.False(t, event.TimestampValid)
		assert.Equal(t, now, event.Timestamp)
	})

	t.Run("fractional seconds accepted", func(t *testing.T) {
		event := normalize.Event(map[string]any{"published": "2026-03-01T08:15:00.123Z"}, now)
		assert.True(t, event.TimestampValid)
		assert.Equal(t, 15, event.Timestamp.UTC().Minute())
	})
}

func TestEvent_NeverPanics(t *testing.T) {
	raws := []map[string]any{
		nil,
		{},
		{"actor": "not-a-map"},
		{"target": "not-a-list"},
		{"target": []any{"not-a-map"}},
		{"client": map[string]any{"geographicalContext": "not-a-map"}},
		{"published": 12345},
	}

	for _, raw := range raws {
		assert.NotPanics(t, func() {
			event := normalize.Event(raw, time.Now())
			assert.Equal(t, models.OutcomeUnknown, event.Outcome)
		})
	}
}
