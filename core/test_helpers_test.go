package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func testProviderConfig(providerCode string) ProviderConfig {
	return ProviderConfig{
		ProviderCode:         providerCode,
		Environment:          EnvironmentTest,
		APIKey:               "key_test",
		SubscriptionKey:      "sub_test",
		MerchantSerialNumber: "123456",
		CallbackBaseURL:      "https://app.example/payment/vipps/webhook",
	}
}

type memoryRegistrationStore struct {
	mu      sync.Mutex
	records map[string]WebhookRegistration
	nextID  int

	upsertErr error
}

func newMemoryRegistrationStore() *memoryRegistrationStore {
	return &memoryRegistrationStore{records: map[string]WebhookRegistration{}}
}

func (s *memoryRegistrationStore) Upsert(_ context.Context, in UpsertRegistrationInput) (WebhookRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return WebhookRegistration{}, s.upsertErr
	}

	code := strings.TrimSpace(in.ProviderCode)
	record, ok := s.records[code]
	if !ok {
		s.nextID++
		record = WebhookRegistration{
			ID:           fmt.Sprintf("reg_%d", s.nextID),
			ProviderCode: code,
			CreatedAt:    time.Now().UTC(),
		}
	}
	if in.RemoteWebhookID != "" {
		record.RemoteWebhookID = in.RemoteWebhookID
	}
	record.CallbackURL = in.CallbackURL
	record.Status = in.Status
	record.LastCheckedAt = in.LastCheckedAt
	record.LastError = in.LastError
	record.Metadata = mergeAnyMap(record.Metadata, in.Metadata)
	record.UpdatedAt = time.Now().UTC()
	s.records[code] = record
	return record, nil
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

func (s *memoryRegistrationStore) GetByProviderCode(_ context.Context, providerCode string) (WebhookRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(providerCode)]
	if !ok {
		return WebhookRegistration{}, fmt.Errorf("%w: %s", ErrRegistrationNotFound, providerCode)
	}
	return record, nil
}

func (s *memoryRegistrationStore) UpdateState(
	_ context.Context,
	providerCode string,
	status RegistrationStatus,
	lastError string,
	checkedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.TrimSpace(providerCode)
	record, ok := s.records[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRegistrationNotFound, code)
	}
	record.Status = status
	record.LastError = lastError
	record.LastCheckedAt = &checkedAt
	record.UpdatedAt = checkedAt
	s.records[code] = record
	return nil
}

type fakeWebhookProvider struct {
	id string

	mu      sync.Mutex
	remote  []RemoteWebhook
	nextID  int
	listErr error

	createErr error
	deleteErr error

	listCalls   atomic.Int64
	createCalls atomic.Int64
	deleteCalls atomic.Int64
}

func newFakeWebhookProvider(id string) *fakeWebhookProvider {
	return &fakeWebhookProvider{id: id}
}

func (p *fakeWebhookProvider) ID() string { return p.id }

func (p *fakeWebhookProvider) ListWebhooks(_ context.Context, _ ProviderConfig) ([]RemoteWebhook, error) {
	p.listCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := make([]RemoteWebhook, len(p.remote))
	copy(out, p.remote)
	return out, nil
}

func (p *fakeWebhookProvider) CreateWebhook(_ context.Context, _ ProviderConfig, callbackURL string) (RemoteWebhook, error) {
	p.createCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return RemoteWebhook{}, p.createErr
	}
	p.nextID++
	webhook := RemoteWebhook{
		ID:          fmt.Sprintf("wh_%d", p.nextID),
		CallbackURL: callbackURL,
		Active:      true,
		// Like the real providers, the signing secret exists only in the
		// create response. List results never include it.
		Metadata: map[string]any{
			"signature_secret": fmt.Sprintf("secret_%d", p.nextID),
		},
	}
	listed := webhook
	listed.Metadata = nil
	p.remote = append(p.remote, listed)
	return webhook, nil
}

func (p *fakeWebhookProvider) DeleteWebhook(_ context.Context, _ ProviderConfig, remoteWebhookID string) error {
	p.deleteCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	kept := p.remote[:0]
	for _, webhook := range p.remote {
		if webhook.ID != remoteWebhookID {
			kept = append(kept, webhook)
		}
	}
	p.remote = kept
	return nil
}

func (p *fakeWebhookProvider) seedRemote(webhooks ...RemoteWebhook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = append(p.remote, webhooks...)
}

func newTestService(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, provider WebhookProvider, store RegistrationStore) *Service {
	t.Helper()
	registry := NewProviderRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	svc, err := NewService(Config{},
		WithRegistry(registry),
		WithRegistrationStore(store),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
