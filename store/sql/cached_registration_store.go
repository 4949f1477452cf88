package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-registrar/core"
)

const registrationCacheKeyPrefix = "go-webhook-registrar::registration::v1"

// CachedRegistrationStore puts a read-through cache in front of a base
// store. Status checks driven by an external scheduler hit
// GetByProviderCode far more often than the lifecycle mutates it, so reads
// are cached and every write invalidates.
type CachedRegistrationStore struct {
	base  core.RegistrationStore
	cache repositorycache.CacheService
}

func NewCachedRegistrationStore(
	base core.RegistrationStore,
	cacheService repositorycache.CacheService,
) (*CachedRegistrationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base registration store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: registration cache service is required")
	}
	return &CachedRegistrationStore{base: base, cache: cacheService}, nil
}

// RegistrationCacheKey returns the deterministic cache key contract for
// registration reads: go-webhook-registrar::registration::v1::<provider_code>
// with the provider segment URL-path escaped.
func RegistrationCacheKey(providerCode string) (string, error) {
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return "", fmt.Errorf("sqlstore: provider code is required")
	}
	return registrationCacheKeyPrefix + "::" + url.PathEscape(providerCode), nil
}

func (s *CachedRegistrationStore) GetByProviderCode(ctx context.Context, providerCode string) (core.WebhookRegistration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: cached registration store is not configured")
	}
	cacheKey, err := RegistrationCacheKey(providerCode)
	if err != nil {
		return core.WebhookRegistration{}, err
	}

	registration, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.WebhookRegistration, error) {
		fetched, fetchErr := s.base.GetByProviderCode(ctx, providerCode)
		if fetchErr != nil {
			return core.WebhookRegistration{}, fetchErr
		}
		return cloneRegistration(fetched), nil
	})
	if err != nil {
		return core.WebhookRegistration{}, err
	}
	return cloneRegistration(registration), nil
}

func (s *CachedRegistrationStore) Upsert(ctx context.Context, in core.UpsertRegistrationInput) (core.WebhookRegistration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: cached registration store is not configured")
	}
	out, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.WebhookRegistration{}, err
	}
	if err := s.invalidate(ctx, out.ProviderCode); err != nil {
		return core.WebhookRegistration{}, err
	}
	return out, nil
}

func (s *CachedRegistrationStore) UpdateState(
	ctx context.Context,
	providerCode string,
	status core.RegistrationStatus,
	lastError string,
	checkedAt time.Time,
) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached registration store is not configured")
	}
	if err := s.base.UpdateState(ctx, providerCode, status, lastError, checkedAt); err != nil {
		return err
	}
	return s.invalidate(ctx, providerCode)
}

func (s *CachedRegistrationStore) invalidate(ctx context.Context, providerCode string) error {
	cacheKey, err := RegistrationCacheKey(providerCode)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneRegistration(registration core.WebhookRegistration) core.WebhookRegistration {
	cloned := registration
	cloned.Metadata = copyAnyMap(registration.Metadata)
	cloned.LastCheckedAt = cloneTimePointer(registration.LastCheckedAt)
	return cloned
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
