package core

import (
	"context"
	"strings"
)

// Report is the operator-facing boundary. It runs a status check and folds
// every failure kind into the summary; no error ever crosses this call.
func (s *Service) Report(ctx context.Context, cfg ProviderConfig) StatusSummary {
	summary := StatusSummary{
		ProviderCode: strings.TrimSpace(cfg.ProviderCode),
		State:        RegistrationStatusError,
		CallbackURL:  strings.TrimSpace(cfg.CallbackBaseURL),
	}
	if s == nil {
		summary.LastError = "registrar service is not configured"
		return summary
	}

	registration, err := s.CheckStatus(ctx, cfg)
	if err != nil {
		summary.State = RegistrationStatusError
		summary.LastError = err.Error()
		if registration.ID != "" {
			summary.RemoteWebhookID = registration.RemoteWebhookID
			summary.LastCheckedAt = registration.LastCheckedAt
		}
		return summary
	}

	summary.State = registration.Status
	summary.RemoteWebhookID = registration.RemoteWebhookID
	summary.CallbackURL = registration.CallbackURL
	summary.LastCheckedAt = registration.LastCheckedAt
	summary.LastError = registration.LastError
	return summary
}
