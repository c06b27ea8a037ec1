// Package mfa audits user MFA enrollment: accounts with no factors, or with
// nothing stronger than SMS, are flagged as weak.
package mfa

import (
	"context"
	"fmt"
	"strings"
)

// UserDirectory lists users and their enrolled factors.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]map[string]any, error)
	ListUserFactors(ctx context.Context, userID string) ([]map[string]any, error)
}

// Finding is one audited account.
type Finding struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Weak      bool   `json:"weak"`
	Reason    string `json:"reason,omitempty"`
}

// Auditor scans the user directory for weak MFA enrollment.
type Auditor struct {
	directory UserDirectory
}

// NewAuditor creates a new MFA auditor
func NewAuditor(directory UserDirectory) *Auditor {
	return &Auditor{directory: directory}
}

// Audit lists all users and reports a finding per user.
func (a *Auditor) Audit(ctx context.Context) ([]Finding, error) {
	users, err := a.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	findings := make([]Finding, 0, len(users))
	for _, user := range users {
		id, _ := user["id"].(string)
		if id == "" {
			continue
		}

		factors, err := a.directory.ListUserFactors(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch factors for %s: %w", id, err)
		}

		weak, reason := weakFactors(factors)
		findings = append(findings, Finding{
			AccountID: id,
			Username:  login(user),
			Weak:      weak,
			Reason:    reason,
		})
	}

	return findings, nil
}

func login(user map[string]any) string {
	profile, ok := user["profile"].(map[string]any)
	if !ok {
		return ""
	}
	l, _ := profile["login"].(string)
	return l
}

// weakFactors classifies a factor list. SMS counts as weak; an account is
// weak when it has no factors at all or nothing but SMS.
func weakFactors(factors []map[string]any) (bool, string) {
	if len(factors) == 0 {
		return true, "no MFA factors enrolled"
	}

	for _, factor := range factors {
		factorType, _ := factor["factorType"].(string)
		provider, _ := factor["provider"].(string)
		if !strings.Contains(strings.ToLower(factorType), "sms") &&
			!strings.Contains(strings.ToLower(provider), "sms") {
			return false, ""
		}
	}
	return true, "SMS-only factors"
}
