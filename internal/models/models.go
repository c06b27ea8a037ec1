package models

import (
	"time"
)

// Outcome classifies the result of an authentication event.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeUnknown Outcome = "UNKNOWN"
)

// LogEvent is the canonical view of one raw Okta System Log record.
// Missing fields resolve to zero values; TimestampValid is false when the
// record carried a timestamp that could not be parsed.
type LogEvent struct {
	Timestamp      time.Time
	TimestampValid bool
	AccountID      string
	Username       string
	SourceIP       string
	Country        string
	Outcome        Outcome
}

// RiskType identifies which detection produced an alert.
type RiskType string

const (
	RiskBruteForceSuspected RiskType = "brute_force_suspected"
	RiskAccountCompromise   RiskType = "brute_force_account_compromise"
	RiskUnusualGeography    RiskType = "unusual_geography"
	RiskOutsideWorkHours    RiskType = "outside_business_hours"
)

// Severity represents alert severity level
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ActionTaken records the remediation outcome on an alert.
type ActionTaken string

const (
	ActionSuspended       ActionTaken = "suspended"
	ActionSuspendFailed   ActionTaken = "suspend-failed"
	ActionSuspendedManual ActionTaken = "suspended-manual"
)

// Alert represents a normalized security alert
type Alert struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"account_id"`
	Username    string      `json:"username"`
	RiskType    RiskType    `json:"risk_type"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
	Severity    Severity    `json:"severity"`
	ActionTaken ActionTaken `json:"action_taken,omitempty"`
}

// FailedAttempt is one entry in a username's failed-login history.
type FailedAttempt struct {
	Timestamp time.Time `json:"ts"`
	SourceIP  string    `json:"ip"`
}

// MaxKnownCountries caps the per-account known-country history.
const MaxKnownCountries = 10

// RiskState is the durable per-user detection state shared by all rules.
// It is owned by one detection batch at a time; callers serialize access.
type RiskState struct {
	LastCheckpoint *time.Time                 `json:"last_checkpoint"`
	FailedAttempts map[string][]FailedAttempt `json:"failed_attempts"`
	KnownCountries map[string][]string        `json:"known_countries"`
}

// NewRiskState creates an empty risk state.
func NewRiskState() *RiskState {
	return &RiskState{
		FailedAttempts: map[string][]FailedAttempt{},
		KnownCountries: map[string][]string{},
	}
}

// EnsureDefaults materializes nil maps after a cold-start load.
func (s *RiskState) EnsureDefaults() {
	if s.FailedAttempts == nil {
		s.FailedAttempts = map[string][]FailedAttempt{}
	}
	if s.KnownCountries == nil {
		s.KnownCountries = map[string][]string{}
	}
}

// RecordFailure appends a failed attempt to the username's history.
func (s *RiskState) RecordFailure(username string, at time.Time, sourceIP string) {
	s.FailedAttempts[username] = append(s.FailedAttempts[username], FailedAttempt{
		Timestamp: at,
		SourceIP:  sourceIP,
	})
}

// PruneFailures drops attempts older than cutoff and returns the remaining
// count. An attempt timestamped exactly at the cutoff is kept.
func (s *RiskState) PruneFailures(username string, cutoff time.Time) int {
	attempts := s.FailedAttempts[username]
	kept := attempts[:0]
	for _, a := range attempts {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	s.FailedAttempts[username] = kept
	return len(kept)
}

// FailureCount returns the current length of the username's history without
// pruning it.
func (s *RiskState) FailureCount(username string) int {
	return len(s.FailedAttempts[username])
}

// ClearFailures resets the username's failed-attempt history.
func (s *RiskState) ClearFailures(username string) {
	s.FailedAttempts[username] = []FailedAttempt{}
}

// KnowsCountry reports whether the account has already been seen logging in
// from the given country.
func (s *RiskState) KnowsCountry(accountID, country string) bool {
	for _, c := range s.KnownCountries[accountID] {
		if c == country {
			return true
		}
	}
	return false
}

// AddCountry records a country for the account, keeping only the most recent
// entries and never storing duplicates.
func (s *RiskState) AddCountry(accountID, country string) {
	if s.KnowsCountry(accountID, country) {
		return
	}
	known := append(s.KnownCountries[accountID], country)
	if len(known) > MaxKnownCountries {
		known = known[len(known)-MaxKnownCountries:]
	}
	s.KnownCountries[accountID] = known
}
