package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidEnvironment                  = errors.New("core: invalid environment")
	ErrInvalidRegistrationStatusTransition = errors.New("core: invalid registration status transition")
	ErrRegistrationNotFound                = errors.New("core: registration not found")
)

type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

func ParseEnvironment(value string) (Environment, error) {
	switch Environment(strings.TrimSpace(strings.ToLower(value))) {
	case EnvironmentTest:
		return EnvironmentTest, nil
	case EnvironmentProduction:
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEnvironment, value)
	}
}

// ProviderConfig carries one provider configuration record supplied by the
// host application. The registrar never persists credentials itself.
type ProviderConfig struct {
	ProviderCode         string
	Environment          Environment
	APIKey               string
	SubscriptionKey      string
	MerchantSerialNumber string
	CallbackBaseURL      string
	Metadata             map[string]any
}

func (c ProviderConfig) Validate() error {
	if strings.TrimSpace(c.ProviderCode) == "" {
		return fmt.Errorf("core: provider code is required")
	}
	if _, err := ParseEnvironment(string(c.Environment)); err != nil {
		return err
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("core: api key is required")
	}
	callback := strings.TrimSpace(c.CallbackBaseURL)
	if callback == "" {
		return fmt.Errorf("core: callback base url is required")
	}
	parsed, err := url.Parse(callback)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: callback base url %q is not an absolute url", callback)
	}
	return nil
}

type RegistrationStatus string

const (
	RegistrationStatusUnregistered RegistrationStatus = "unregistered"
	RegistrationStatusRegistered   RegistrationStatus = "registered"
	RegistrationStatusError        RegistrationStatus = "error"
)

// WebhookRegistration is the local ledger entry for one provider's remote
// webhook subscription. The remote service is the source of truth; this
// record is reconciled against it on every lifecycle operation.
type WebhookRegistration struct {
	ID              string
	ProviderCode    string
	RemoteWebhookID string
	CallbackURL     string
	Status          RegistrationStatus
	LastCheckedAt   *time.Time
	LastError       string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r *WebhookRegistration) TransitionTo(status RegistrationStatus, reason string, now time.Time) error {
	if r == nil {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if r.Status == status {
		r.UpdatedAt = now
		if reason != "" {
			r.LastError = reason
		}
		return nil
	}
	if !registrationTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRegistrationStatusTransition, r.Status, status)
	}
	r.Status = status
	r.UpdatedAt = now
	if reason != "" {
		r.LastError = reason
	}
	if status == RegistrationStatusRegistered {
		r.LastError = ""
	}
	return nil
}

func registrationTransitionAllowed(current, next RegistrationStatus) bool {
	allowed := map[RegistrationStatus]map[RegistrationStatus]struct{}{
		RegistrationStatusUnregistered: {
			RegistrationStatusRegistered: {},
			RegistrationStatusError:      {},
		},
		RegistrationStatusRegistered: {
			RegistrationStatusUnregistered: {},
			RegistrationStatusError:        {},
		},
		RegistrationStatusError: {
			RegistrationStatusRegistered:   {},
			RegistrationStatusUnregistered: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// RemoteWebhook is a provider-side subscription row as the remote API
// reports it.
type RemoteWebhook struct {
	ID          string
	CallbackURL string
	Events      []string
	Active      bool
	Metadata    map[string]any
}

// StatusSummary is the operator-facing view produced by Report. It never
// carries a raw error, only a displayable message.
type StatusSummary struct {
	ProviderCode    string
	State           RegistrationStatus
	RemoteWebhookID string
	CallbackURL     string
	LastCheckedAt   *time.Time
	LastError       string
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
