package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]WebhookProvider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]WebhookProvider)}
}

func (r *ProviderRegistry) Register(provider WebhookProvider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	code := strings.TrimSpace(provider.ID())
	if code == "" {
		return fmt.Errorf("core: provider code is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[code]; exists {
		return fmt.Errorf("core: provider already registered: %s", code)
	}
	r.providers[code] = provider
	return nil
}

func (r *ProviderRegistry) Get(providerCode string) (WebhookProvider, bool) {
	code := strings.TrimSpace(providerCode)
	if code == "" {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[code]
	r.mu.RUnlock()
	return provider, ok
}

func (r *ProviderRegistry) List() []WebhookProvider {
	r.mu.RLock()
	keys := make([]string, 0, len(r.providers))
	for code := range r.providers {
		keys = append(keys, code)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	providers := make([]WebhookProvider, 0, len(keys))
	r.mu.RLock()
	for _, code := range keys {
		providers = append(providers, r.providers[code])
	}
	r.mu.RUnlock()
	return providers
}

