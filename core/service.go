package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrProviderNotFound = errors.New("core: provider not found")

// Service owns the webhook-registration lifecycle for every configured
// payment provider. All three mutating operations are reconciliation-style:
// the remote service is the source of truth, so each one re-derives state
// from a remote query before touching the local ledger.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	registry          Registry
	registrationStore RegistrationStore
	locker            RegistrationLocker
	nowFn             func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhook-registrar", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("webhook-registrar"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.locker == nil {
		builder.locker = NewMemoryRegistrationLocker()
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		registry:          builder.registry,
		registrationStore: builder.registrationStore,
		locker:            builder.locker,
		nowFn:             builder.nowFn,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Register ensures exactly one active remote subscription exists for the
// config's callback URL. An existing active match is reused unchanged; only
// when the remote reports none does Register issue a create call.
func (s *Service) Register(ctx context.Context, cfg ProviderConfig) (WebhookRegistration, error) {
	startedAt := s.now()
	fields := configFields(cfg)

	registration, err := s.register(ctx, cfg)
	s.observeOperation(ctx, startedAt, "webhook_register", err, fields)
	return registration, err
}

func (s *Service) register(ctx context.Context, cfg ProviderConfig) (WebhookRegistration, error) {
	if s == nil || s.registrationStore == nil {
		return WebhookRegistration{}, s.misuseError("core: register requires a registration store")
	}
	if err := cfg.Validate(); err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	provider, err := s.resolveProvider(cfg.ProviderCode)
	if err != nil {
		return WebhookRegistration{}, err
	}

	handle, err := s.locker.Acquire(ctx, cfg.ProviderCode, s.config.LockTTL)
	if err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	defer func() { _ = handle.Unlock(ctx) }()

	callbackURL := strings.TrimSpace(cfg.CallbackBaseURL)
	now := s.now()

	remote, err := provider.ListWebhooks(ctx, cfg)
	if err != nil {
		return WebhookRegistration{}, s.failRegistration(ctx, cfg, callbackURL, "list remote webhooks", err, now)
	}

	if match, ok := matchCallback(remote, callbackURL); ok {
		record, upsertErr := s.registrationStore.Upsert(ctx, UpsertRegistrationInput{
			ProviderCode:    cfg.ProviderCode,
			RemoteWebhookID: match.ID,
			CallbackURL:     callbackURL,
			Status:          RegistrationStatusRegistered,
			LastCheckedAt:   &now,
			Metadata:        copyAnyMap(match.Metadata),
		})
		if upsertErr != nil {
			return WebhookRegistration{}, s.mapError(upsertErr)
		}
		return record, nil
	}

	created, err := provider.CreateWebhook(ctx, cfg, callbackURL)
	if err != nil {
		return WebhookRegistration{}, s.failRegistration(ctx, cfg, callbackURL, "create remote webhook", err, now)
	}

	record, err := s.registrationStore.Upsert(ctx, UpsertRegistrationInput{
		ProviderCode:    cfg.ProviderCode,
		RemoteWebhookID: created.ID,
		CallbackURL:     callbackURL,
		Status:          RegistrationStatusRegistered,
		LastCheckedAt:   &now,
		Metadata:        copyAnyMap(created.Metadata),
	})
	if err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	return record, nil
}

// CheckStatus reconciles the local ledger against the remote subscription
// list. It never creates or deletes anything remotely and is safe to call
// repeatedly and concurrently.
func (s *Service) CheckStatus(ctx context.Context, cfg ProviderConfig) (WebhookRegistration, error) {
	startedAt := s.now()
	fields := configFields(cfg)

	registration, err := s.checkStatus(ctx, cfg)
	s.observeOperation(ctx, startedAt, "webhook_check_status", err, fields)
	return registration, err
}

func (s *Service) checkStatus(ctx context.Context, cfg ProviderConfig) (WebhookRegistration, error) {
	if s == nil || s.registrationStore == nil {
		return WebhookRegistration{}, s.misuseError("core: check status requires a registration store")
	}
	if err := cfg.Validate(); err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	provider, err := s.resolveProvider(cfg.ProviderCode)
	if err != nil {
		return WebhookRegistration{}, err
	}

	callbackURL := strings.TrimSpace(cfg.CallbackBaseURL)
	now := s.now()

	remote, err := provider.ListWebhooks(ctx, cfg)
	if err != nil {
		record, persistErr := s.registrationStore.Upsert(ctx, UpsertRegistrationInput{
			ProviderCode:  cfg.ProviderCode,
			CallbackURL:   callbackURL,
			Status:        RegistrationStatusError,
			LastCheckedAt: &now,
			LastError:     err.Error(),
		})
		if persistErr != nil {
			return WebhookRegistration{}, s.mapError(persistErr)
		}
		return record, s.mapError(err)
	}

	input := UpsertRegistrationInput{
		ProviderCode:  cfg.ProviderCode,
		CallbackURL:   callbackURL,
		Status:        RegistrationStatusUnregistered,
		LastCheckedAt: &now,
	}
	if match, ok := matchCallback(remote, callbackURL); ok {
		input.Status = RegistrationStatusRegistered
		input.RemoteWebhookID = match.ID
		input.Metadata = copyAnyMap(match.Metadata)
	}

	record, err := s.registrationStore.Upsert(ctx, input)
	if err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	return record, nil
}

// Deregister removes the remote subscription for the config's callback URL.
// A remote "already absent" answer counts as success; any other remote
// failure leaves the local record at its prior value so a retry stays
// possible.
func (s *Service) Deregister(ctx context.Context, cfg ProviderConfig) error {
	startedAt := s.now()
	fields := configFields(cfg)

	err := s.deregister(ctx, cfg)
	s.observeOperation(ctx, startedAt, "webhook_deregister", err, fields)
	return err
}

func (s *Service) deregister(ctx context.Context, cfg ProviderConfig) error {
	if s == nil || s.registrationStore == nil {
		return s.misuseError("core: deregister requires a registration store")
	}
	if err := cfg.Validate(); err != nil {
		return s.mapError(err)
	}
	provider, err := s.resolveProvider(cfg.ProviderCode)
	if err != nil {
		return err
	}

	handle, err := s.locker.Acquire(ctx, cfg.ProviderCode, s.config.LockTTL)
	if err != nil {
		return s.mapError(err)
	}
	defer func() { _ = handle.Unlock(ctx) }()

	callbackURL := strings.TrimSpace(cfg.CallbackBaseURL)
	now := s.now()

	remote, err := provider.ListWebhooks(ctx, cfg)
	if err != nil {
		return s.wrapDeregistrationFailure(cfg, "list remote webhooks", err)
	}

	match, ok := matchCallback(remote, callbackURL)
	if ok {
		if err := provider.DeleteWebhook(ctx, cfg, match.ID); err != nil && !IsRemoteAbsence(err) {
			return s.wrapDeregistrationFailure(cfg, "delete remote webhook", err)
		}
	}

	if err := s.registrationStore.UpdateState(ctx, cfg.ProviderCode, RegistrationStatusUnregistered, "", now); err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return nil
		}
		return s.mapError(err)
	}
	return nil
}

// GetByProviderCode reads the local ledger entry without touching the
// remote service. Use CheckStatus when remote truth matters.
func (s *Service) GetByProviderCode(ctx context.Context, providerCode string) (WebhookRegistration, error) {
	if s == nil || s.registrationStore == nil {
		return WebhookRegistration{}, s.misuseError("core: registration lookup requires a registration store")
	}
	record, err := s.registrationStore.GetByProviderCode(ctx, providerCode)
	if err != nil {
		return WebhookRegistration{}, s.mapError(err)
	}
	return record, nil
}

func (s *Service) resolveProvider(providerCode string) (WebhookProvider, error) {
	if s == nil || s.registry == nil {
		return nil, s.misuseError("core: provider registry is required")
	}
	provider, ok := s.registry.Get(providerCode)
	if !ok || provider == nil {
		return nil, s.mapError(fmt.Errorf("%w: provider %q is not registered", ErrProviderNotFound, providerCode))
	}
	return provider, nil
}

// failRegistration persists status=error with the underlying cause before
// the wrapped error propagates, so a failed register never leaves a
// partially applied record.
func (s *Service) failRegistration(
	ctx context.Context,
	cfg ProviderConfig,
	callbackURL string,
	step string,
	cause error,
	now time.Time,
) error {
	_, persistErr := s.registrationStore.Upsert(ctx, UpsertRegistrationInput{
		ProviderCode:  cfg.ProviderCode,
		CallbackURL:   callbackURL,
		Status:        RegistrationStatusError,
		LastCheckedAt: &now,
		LastError:     cause.Error(),
	})
	if persistErr != nil {
		s.logError(ctx, "persist registration failure state", map[string]any{
			"provider_code": cfg.ProviderCode,
			"error":         persistErr.Error(),
		})
	}
	wrapped := goerrors.Wrap(
		cause,
		causeCategory(cause),
		fmt.Sprintf("core: %s for provider %q", step, cfg.ProviderCode),
	).WithTextCode(RegistrarErrorRegistrationFailed)
	return ensureRegistrarErrorEnvelope(wrapped)
}

func (s *Service) wrapDeregistrationFailure(cfg ProviderConfig, step string, cause error) error {
	wrapped := goerrors.Wrap(
		cause,
		causeCategory(cause),
		fmt.Sprintf("core: %s for provider %q", step, cfg.ProviderCode),
	).WithTextCode(RegistrarErrorDeregistrationFailed)
	return ensureRegistrarErrorEnvelope(wrapped)
}

func causeCategory(err error) goerrors.Category {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category
	}
	return goerrors.CategoryOperation
}

func matchCallback(remote []RemoteWebhook, callbackURL string) (RemoteWebhook, bool) {
	target := strings.TrimRight(strings.TrimSpace(callbackURL), "/")
	for _, webhook := range remote {
		if !webhook.Active {
			continue
		}
		if strings.TrimRight(strings.TrimSpace(webhook.CallbackURL), "/") == target {
			return webhook, true
		}
	}
	return RemoteWebhook{}, false
}

func configFields(cfg ProviderConfig) map[string]any {
	return map[string]any{
		"provider_code": cfg.ProviderCode,
		"environment":   string(cfg.Environment),
		"callback_url":  strings.TrimSpace(cfg.CallbackBaseURL),
	}
}

// misuseError reports a missing service dependency. It goes through the
// configured factory so hosts that brand their errors get the same envelope
// on wiring mistakes as on domain failures.
func (s *Service) misuseError(message string) error {
	factory := goerrors.New
	if s != nil && s.errorFactory != nil {
		factory = s.errorFactory
	}
	return ensureRegistrarErrorEnvelope(
		factory(message, goerrors.CategoryInternal).WithTextCode(RegistrarErrorInternal),
	)
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
