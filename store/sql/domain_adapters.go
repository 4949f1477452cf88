package sqlstore

import (
	"time"

	"github.com/goliatone/go-webhook-registrar/core"
)

func newRegistrationRecord(in core.UpsertRegistrationInput, now time.Time) *registrationRecord {
	record := &registrationRecord{
		ProviderCode:    in.ProviderCode,
		RemoteWebhookID: in.RemoteWebhookID,
		CallbackURL:     in.CallbackURL,
		Status:          string(in.Status),
		LastError:       in.LastError,
		Metadata:        copyAnyMap(in.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.LastCheckedAt != nil {
		checkedAt := *in.LastCheckedAt
		record.LastCheckedAt = &checkedAt
	}
	return record
}

func (r *registrationRecord) toDomain() core.WebhookRegistration {
	if r == nil {
		return core.WebhookRegistration{}
	}
	registration := core.WebhookRegistration{
		ID:              r.ID,
		ProviderCode:    r.ProviderCode,
		RemoteWebhookID: r.RemoteWebhookID,
		CallbackURL:     r.CallbackURL,
		Status:          core.RegistrationStatus(r.Status),
		LastError:       r.LastError,
		Metadata:        copyAnyMap(r.Metadata),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.LastCheckedAt != nil {
		checkedAt := *r.LastCheckedAt
		registration.LastCheckedAt = &checkedAt
	}
	return registration
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

func mergeAnyMap(existing map[string]any, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range incoming {
		merged[key] = value
	}
	return merged
}
