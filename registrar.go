package registrar

import "github.com/goliatone/go-webhook-registrar/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type Environment = core.Environment
type ProviderConfig = core.ProviderConfig
type RegistrationStatus = core.RegistrationStatus
type WebhookRegistration = core.WebhookRegistration
type RemoteWebhook = core.RemoteWebhook
type StatusSummary = core.StatusSummary
type PaymentState = core.PaymentState

type WebhookProvider = core.WebhookProvider
type PaymentStatusProvider = core.PaymentStatusProvider
type Registry = core.Registry
type RegistrationStore = core.RegistrationStore
type RegistrationLocker = core.RegistrationLocker

const (
	EnvironmentTest       = core.EnvironmentTest
	EnvironmentProduction = core.EnvironmentProduction

	RegistrationStatusUnregistered = core.RegistrationStatusUnregistered
	RegistrationStatusRegistered   = core.RegistrationStatusRegistered
	RegistrationStatusError        = core.RegistrationStatusError
)

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithRegistry           = core.WithRegistry
	WithRegistrationStore  = core.WithRegistrationStore
	WithRegistrationLocker = core.WithRegistrationLocker
	WithNowFunc            = core.WithNowFunc
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
