// Package normalize extracts a canonical LogEvent view from raw Okta System
// Log records. Normalization never fails: missing or unexpected fields
// resolve to empty values and an UNKNOWN outcome.
package normalize

import (
	"strings"
	"time"

	"github.com/AdeshRathod/OktaGuard/internal/models"
)

// accessor is one attempt at extracting a field from a raw record. Accessors
// for the same field are tried in priority order until one succeeds.
type accessor func(raw map[string]any) (string, bool)

var (
	usernameAccessors = []accessor{
		nested("actor", "alternateId"),
		firstTarget("displayName"),
	}
	accountIDAccessors = []accessor{
		nested("actor", "id"),
		firstTarget("id"),
	}
	sourceIPAccessors = []accessor{
		nested("client", "ip"),
		nested("request", "ip"),
	}
	countryAccessors = []accessor{
		nested("client", "geographicalContext", "country"),
		nested("client", "geo", "country"),
		nested("geographicalContext", "country"),
	}
)

// Event normalizes one raw record. The now argument supplies the timestamp
// used when the record carries none.
func Event(raw map[string]any, now time.Time) models.LogEvent {
	event := models.LogEvent{
		Username:  first(raw, usernameAccessors),
		AccountID: first(raw, accountIDAccessors),
		SourceIP:  first(raw, sourceIPAccessors),
		Country:   first(raw, countryAccessors),
		Outcome:   outcome(raw),
	}
	event.Timestamp, event.TimestampValid = published(raw, now)
	return event
}

func first(raw map[string]any, accessors []accessor) string {
	for _, access := range accessors {
		if value, ok := access(raw); ok {
			return value
		}
	}
	return ""
}

// nested returns an accessor that walks a chain of map keys to a string leaf.
func nested(keys ...string) accessor {
	return func(raw map[string]any) (string, bool) {
		current := raw
		for i, key := range keys {
			value, ok := current[key]
			if !ok {
				return "", false
			}
			if i == len(keys)-1 {
				s, ok := value.(string)
				return s, ok && s != ""
			}
			current, ok = value.(map[string]any)
			if !ok {
				return "", false
			}
		}
		return "", false
	}
}

// firstTarget reads a string field from the first entry of the target list.
func firstTarget(field string) accessor {
	return func(raw map[string]any) (string, bool) {
		targets, ok := raw["target"].([]any)
		if !ok || len(targets) == 0 {
			return "", false
		}
		target, ok := targets[0].(map[string]any)
		if !ok {
			return "", false
		}
		s, ok := target[field].(string)
		return s, ok && s != ""
	}
}

func outcome(raw map[string]any) models.Outcome {
	result, ok := nested("outcome", "result")(raw)
	if !ok {
		return models.OutcomeUnknown
	}
	switch strings.ToLower(result) {
	case "success":
		return models.OutcomeSuccess
	case "failure":
		return models.OutcomeFailure
	default:
		return models.OutcomeUnknown
	}
}

// published parses the record's ISO-8601 timestamp. An absent timestamp
// defaults to now; a malformed one also resolves to now but is flagged
// invalid so that time-of-day detections can skip the event.
func published(raw map[string]any, now time.Time) (time.Time, bool) {
	value, ok := raw["published"].(string)
	if !ok || value == "" {
		return now, true
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return now, false
	}
	return ts, true
}
