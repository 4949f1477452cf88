package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type claimState string

const (
	claimStateProcessing claimState = "processing"
	claimStateRetryReady claimState = "retry_ready"
	claimStateComplete   claimState = "complete"
)

type deliveryClaim struct {
	key       string
	state     claimState
	claimID   string
	attempts  int
	ttl       time.Duration
	expiresAt time.Time
	retryAt   time.Time
}

// MemoryClaimStore is the in-process ClaimStore. Completed claims keep
// their key for the claim TTL so redeliveries inside the window dedupe.
type MemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]deliveryClaim
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		entries: map[string]deliveryClaim{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: claim key is required", nil)
	}
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if exists {
		switch entry.state {
		case claimStateComplete, claimStateProcessing:
			if now.Before(entry.expiresAt) {
				return "", false, nil
			}
		case claimStateRetryReady:
			if !entry.retryAt.IsZero() && now.Before(entry.retryAt) {
				return "", false, nil
			}
		}
		delete(s.claims, entry.claimID)
	}

	s.nextID++
	claimID := fmt.Sprintf("claim_%d", s.nextID)
	s.entries[key] = deliveryClaim{
		key:       key,
		state:     claimStateProcessing,
		claimID:   claimID,
		attempts:  entry.attempts + 1,
		ttl:       lease,
		expiresAt: now.Add(lease),
	}
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *MemoryClaimStore) Complete(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.activeClaimLocked(claimID)
	if !ok {
		return nil
	}
	entry.state = claimStateComplete
	entry.expiresAt = s.now().Add(entry.ttl)
	entry.retryAt = time.Time{}
	s.entries[entry.key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *MemoryClaimStore) Fail(_ context.Context, claimID string, _ error, retryAt time.Time) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.activeClaimLocked(claimID)
	if !ok {
		return nil
	}
	if retryAt.IsZero() {
		retryAt = s.now()
	}
	entry.state = claimStateRetryReady
	entry.retryAt = retryAt.UTC()
	entry.expiresAt = time.Time{}
	s.entries[entry.key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *MemoryClaimStore) activeClaimLocked(claimID string) (deliveryClaim, bool) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return deliveryClaim{}, false
	}
	key, ok := s.claims[claimID]
	if !ok {
		return deliveryClaim{}, false
	}
	entry, exists := s.entries[key]
	if !exists || entry.claimID != claimID || entry.state != claimStateProcessing {
		delete(s.claims, claimID)
		return deliveryClaim{}, false
	}
	return entry, true
}

func (s *MemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ ClaimStore = (*MemoryClaimStore)(nil)
