package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestService_RegisterCreatesWhenRemoteEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)

	record, err := svc.Register(ctx, testProviderConfig("vipps"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if record.Status != RegistrationStatusRegistered {
		t.Fatalf("expected registered status, got %q", record.Status)
	}
	if record.RemoteWebhookID == "" {
		t.Fatalf("expected remote webhook id to be recorded")
	}
	if got := provider.createCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one create call, got %d", got)
	}
}

func TestService_RegisterReusesExistingRemoteMatch(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	cfg := testProviderConfig("vipps")
	provider.seedRemote(RemoteWebhook{
		ID:          "wh_123",
		CallbackURL: cfg.CallbackBaseURL,
		Active:      true,
	})
	svc := newTestService(t, provider, store)

	record, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if record.RemoteWebhookID != "wh_123" {
		t.Fatalf("expected reuse of wh_123, got %q", record.RemoteWebhookID)
	}
	if got := provider.createCalls.Load(); got != 0 {
		t.Fatalf("expected no create call, got %d", got)
	}
}

func TestService_RegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	first, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	if first.RemoteWebhookID != second.RemoteWebhookID {
		t.Fatalf("expected both calls to converge on one remote webhook")
	}
	if got := provider.createCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one create call across both registers, got %d", got)
	}
}

func TestService_RegisterMatchesCallbackIgnoringTrailingSlash(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	cfg := testProviderConfig("vipps")
	provider.seedRemote(RemoteWebhook{
		ID:          "wh_slash",
		CallbackURL: cfg.CallbackBaseURL + "/",
		Active:      true,
	})
	svc := newTestService(t, provider, store)

	record, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if record.RemoteWebhookID != "wh_slash" {
		t.Fatalf("expected trailing-slash variant to match, got %q", record.RemoteWebhookID)
	}
	if got := provider.createCalls.Load(); got != 0 {
		t.Fatalf("expected no create call, got %d", got)
	}
}

func TestService_RegisterIgnoresInactiveRemoteWebhooks(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	cfg := testProviderConfig("vipps")
	provider.seedRemote(RemoteWebhook{
		ID:          "wh_disabled",
		CallbackURL: cfg.CallbackBaseURL,
		Active:      false,
	})
	svc := newTestService(t, provider, store)

	record, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if record.RemoteWebhookID == "wh_disabled" {
		t.Fatalf("expected inactive webhook to be skipped")
	}
	if got := provider.createCalls.Load(); got != 1 {
		t.Fatalf("expected a fresh create, got %d calls", got)
	}
}

func TestService_RegisterNetworkFailurePersistsErrorState(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	provider.listErr = goerrors.New("core: connection refused", goerrors.CategoryExternal).
		WithTextCode(RegistrarErrorNetworkFailure)
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	_, err := svc.Register(ctx, cfg)
	if err == nil {
		t.Fatalf("expected register to fail")
	}
	if !IsRegistrationError(err) {
		t.Fatalf("expected registration error wrapper, got %v", err)
	}

	record, getErr := store.GetByProviderCode(ctx, "vipps")
	if getErr != nil {
		t.Fatalf("load record: %v", getErr)
	}
	if record.Status != RegistrationStatusError {
		t.Fatalf("expected persisted error status, got %q", record.Status)
	}
	if record.LastError == "" {
		t.Fatalf("expected last error to carry the cause")
	}
}

func TestService_RegisterCreateFailureNeverLeavesPartialRegistered(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	provider.createErr = goerrors.New("core: remote rejected payload", goerrors.CategoryOperation).
		WithCode(422).
		WithTextCode(RegistrarErrorRemoteFailure)
	svc := newTestService(t, provider, store)

	_, err := svc.Register(ctx, testProviderConfig("vipps"))
	if err == nil {
		t.Fatalf("expected register to fail")
	}
	if !IsRegistrationError(err) {
		t.Fatalf("expected registration error wrapper, got %v", err)
	}

	record, getErr := store.GetByProviderCode(ctx, "vipps")
	if getErr != nil {
		t.Fatalf("load record: %v", getErr)
	}
	if record.Status == RegistrationStatusRegistered {
		t.Fatalf("failed create must not leave a registered record")
	}
	if record.RemoteWebhookID != "" {
		t.Fatalf("failed create must not record a remote webhook id")
	}
}

func TestService_RegisterRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)

	_, err := svc.Register(ctx, testProviderConfig("mobilepay"))
	if err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
	if !errors.Is(err, ErrProviderNotFound) {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryNotFound {
			t.Fatalf("expected not-found classification, got %v", err)
		}
	}
}

func TestService_RegisterRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)

	cfg := testProviderConfig("vipps")
	cfg.CallbackBaseURL = "not-a-url"

	_, err := svc.Register(ctx, cfg)
	if err == nil {
		t.Fatalf("expected invalid callback url to fail")
	}
	if got := provider.listCalls.Load(); got != 0 {
		t.Fatalf("invalid config must not reach the remote API, got %d list calls", got)
	}
}

func TestService_ConcurrentRegistersCreateExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	const workers = 8
	var wg sync.WaitGroup
	results := make([]WebhookRegistration, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = svc.Register(ctx, cfg)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
	}
	if got := provider.createCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one remote create across %d workers, got %d", workers, got)
	}
	remoteID := results[0].RemoteWebhookID
	for i := 1; i < workers; i++ {
		if results[i].RemoteWebhookID != remoteID {
			t.Fatalf("expected all workers to converge on %q, worker %d got %q", remoteID, i, results[i].RemoteWebhookID)
		}
	}
}

func TestService_CheckStatusDetectsOutOfBandDeletion(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	registered, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Simulate the merchant deleting the subscription in the provider portal.
	if err := provider.DeleteWebhook(ctx, cfg, registered.RemoteWebhookID); err != nil {
		t.Fatalf("remote delete: %v", err)
	}

	record, err := svc.CheckStatus(ctx, cfg)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if record.Status != RegistrationStatusUnregistered {
		t.Fatalf("expected unregistered after remote deletion, got %q", record.Status)
	}
	if record.LastCheckedAt == nil {
		t.Fatalf("expected last checked timestamp")
	}
}

func TestService_CheckStatusConfirmsRegisteredMatch(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	registered, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	record, err := svc.CheckStatus(ctx, cfg)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if record.Status != RegistrationStatusRegistered {
		t.Fatalf("expected registered status, got %q", record.Status)
	}
	if record.RemoteWebhookID != registered.RemoteWebhookID {
		t.Fatalf("expected matching remote webhook id")
	}
}

func TestService_CheckStatusKeepsCreateTimeMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	registered, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	secret, _ := registered.Metadata["signature_secret"].(string)
	if secret == "" {
		t.Fatalf("expected register to capture the create-time signing secret")
	}

	// The remote list never echoes the secret, so the recheck rebuilds its
	// upsert from a listing without it.
	record, err := svc.CheckStatus(ctx, cfg)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if got, _ := record.Metadata["signature_secret"].(string); got != secret {
		t.Fatalf("check status must keep the signing secret, got metadata %v", record.Metadata)
	}
	if record.RemoteWebhookID != registered.RemoteWebhookID {
		t.Fatalf("check status must keep the remote webhook id, got %q", record.RemoteWebhookID)
	}

	stored, err := store.GetByProviderCode(ctx, "vipps")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if got, _ := stored.Metadata["signature_secret"].(string); got != secret {
		t.Fatalf("persisted record lost the signing secret, got metadata %v", stored.Metadata)
	}
}

func TestService_RegisterReuseKeepsCreateTimeMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	registered, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	secret, _ := registered.Metadata["signature_secret"].(string)
	if secret == "" {
		t.Fatalf("expected register to capture the create-time signing secret")
	}

	// The second register finds the remote match and reuses it.
	reused, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if got := provider.createCalls.Load(); got != 1 {
		t.Fatalf("expected the second register to reuse, got %d create calls", got)
	}
	if got, _ := reused.Metadata["signature_secret"].(string); got != secret {
		t.Fatalf("reuse must keep the signing secret, got metadata %v", reused.Metadata)
	}
}

func TestService_CheckStatusPersistsErrorOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	provider.listErr = goerrors.New("core: gateway timeout", goerrors.CategoryExternal).
		WithTextCode(RegistrarErrorNetworkFailure)
	svc := newTestService(t, provider, store)

	record, err := svc.CheckStatus(ctx, testProviderConfig("vipps"))
	if err == nil {
		t.Fatalf("expected check status to fail")
	}
	if record.Status != RegistrationStatusError {
		t.Fatalf("expected returned record to carry error status, got %q", record.Status)
	}

	stored, getErr := store.GetByProviderCode(ctx, "vipps")
	if getErr != nil {
		t.Fatalf("load record: %v", getErr)
	}
	if stored.Status != RegistrationStatusError {
		t.Fatalf("expected persisted error status, got %q", stored.Status)
	}
	if stored.LastError == "" {
		t.Fatalf("expected persisted last error")
	}
}

func TestService_DeregisterRemovesRemoteAndLocalState(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	if _, err := svc.Register(ctx, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Deregister(ctx, cfg); err != nil {
		t.Fatalf("deregister: %v", err)
	}

	if got := provider.deleteCalls.Load(); got != 1 {
		t.Fatalf("expected one remote delete, got %d", got)
	}
	record, err := store.GetByProviderCode(ctx, "vipps")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Status != RegistrationStatusUnregistered {
		t.Fatalf("expected unregistered, got %q", record.Status)
	}
}

func TestService_DeregisterIsNoOpWhenRemoteAbsent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)

	if err := svc.Deregister(ctx, testProviderConfig("vipps")); err != nil {
		t.Fatalf("deregister on absent webhook must succeed: %v", err)
	}
	if got := provider.deleteCalls.Load(); got != 0 {
		t.Fatalf("expected no remote delete, got %d", got)
	}
}

func TestService_DeregisterTreatsRemote404AsSuccess(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	if _, err := svc.Register(ctx, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	provider.deleteErr = goerrors.New("core: webhook not found", goerrors.CategoryNotFound).
		WithCode(404)

	if err := svc.Deregister(ctx, cfg); err != nil {
		t.Fatalf("remote 404 on delete must count as success: %v", err)
	}
	record, err := store.GetByProviderCode(ctx, "vipps")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Status != RegistrationStatusUnregistered {
		t.Fatalf("expected unregistered, got %q", record.Status)
	}
}

func TestService_DeregisterFailureLeavesLocalStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	if _, err := svc.Register(ctx, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	provider.deleteErr = goerrors.New("core: internal server error", goerrors.CategoryOperation).
		WithCode(500).
		WithTextCode(RegistrarErrorRemoteFailure)

	err := svc.Deregister(ctx, cfg)
	if err == nil {
		t.Fatalf("expected deregister to fail")
	}
	if !IsDeregistrationError(err) {
		t.Fatalf("expected deregistration error wrapper, got %v", err)
	}
	record, getErr := store.GetByProviderCode(ctx, "vipps")
	if getErr != nil {
		t.Fatalf("load record: %v", getErr)
	}
	if record.Status != RegistrationStatusRegistered {
		t.Fatalf("failed deregister must keep the prior registered state, got %q", record.Status)
	}
}

func TestService_GetByProviderCodeReadsLedgerOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryRegistrationStore()
	provider := newFakeWebhookProvider("vipps")
	svc := newTestService(t, provider, store)
	cfg := testProviderConfig("vipps")

	registered, err := svc.Register(ctx, cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	listCalls := provider.listCalls.Load()

	record, err := svc.GetByProviderCode(ctx, "vipps")
	if err != nil {
		t.Fatalf("get by provider code: %v", err)
	}
	if record.RemoteWebhookID != registered.RemoteWebhookID {
		t.Fatalf("expected ledger entry to match registration")
	}
	if provider.listCalls.Load() != listCalls {
		t.Fatalf("ledger read must not touch the remote API")
	}
}
