package remediation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AccountAPI is the identity-provider operation the service depends on.
type AccountAPI interface {
	SuspendUser(ctx context.Context, userID string) error
}

// Service executes account remediation through the identity provider. It is
// used both by the detection engine's auto-suspend path and by the manual
// remediation endpoint.
type Service struct {
	client AccountAPI
	logger *zap.Logger
}

// NewService creates a new remediation service
func NewService(client AccountAPI, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Suspend suspends the account. Failures are returned to the caller; they
// are recorded on the triggering alert, never escalated to a batch failure.
func (s *Service) Suspend(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("accountID required")
	}

	if err := s.client.SuspendUser(ctx, accountID); err != nil {
		return fmt.Errorf("failed to suspend account %s: %w", accountID, err)
	}

	s.logger.Info("suspended account", zap.String("account_id", accountID))
	return nil
}
