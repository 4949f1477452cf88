package registrar

import (
	"context"
	"fmt"

	registrarcommand "github.com/goliatone/go-webhook-registrar/command"
	"github.com/goliatone/go-webhook-registrar/core"
	registrarquery "github.com/goliatone/go-webhook-registrar/query"
)

type CommandQueryService interface {
	registrarcommand.MutatingService
	registrarquery.StatusReader
	registrarquery.RegistrationReader
}

type Commands struct {
	RegisterWebhook    *registrarcommand.RegisterWebhookCommand
	DeregisterWebhook  *registrarcommand.DeregisterWebhookCommand
	CheckWebhookStatus *registrarcommand.CheckWebhookStatusCommand
}

type Queries struct {
	ReportWebhookStatus *registrarquery.ReportWebhookStatusQuery
	GetRegistration     *registrarquery.GetRegistrationQuery
	GetPaymentStatus    *registrarquery.GetPaymentStatusQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	paymentReader registrarquery.PaymentStatusReader
}

func WithPaymentStatusReader(reader registrarquery.PaymentStatusReader) FacadeOption {
	return func(options *facadeOptions) {
		options.paymentReader = reader
	}
}

// WithPaymentRegistry resolves payment status lookups through the provider
// registry; providers that do not expose payment status reject the query.
func WithPaymentRegistry(registry core.Registry) FacadeOption {
	return func(options *facadeOptions) {
		if registry == nil {
			return
		}
		options.paymentReader = registryPaymentReader{registry: registry}
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("registrar: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.paymentReader
	if reader == nil {
		reader = resolvePaymentReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RegisterWebhook:    registrarcommand.NewRegisterWebhookCommand(service),
		DeregisterWebhook:  registrarcommand.NewDeregisterWebhookCommand(service),
		CheckWebhookStatus: registrarcommand.NewCheckWebhookStatusCommand(service),
	}
	facade.queries = Queries{
		ReportWebhookStatus: registrarquery.NewReportWebhookStatusQuery(service),
		GetRegistration:     registrarquery.NewGetRegistrationQuery(service),
		GetPaymentStatus:    registrarquery.NewGetPaymentStatusQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolvePaymentReader(service CommandQueryService) registrarquery.PaymentStatusReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(registrarquery.PaymentStatusReader); ok {
		return reader
	}
	return nil
}

type registryPaymentReader struct {
	registry core.Registry
}

func (r registryPaymentReader) PaymentStatus(
	ctx context.Context,
	cfg core.ProviderConfig,
	reference string,
) (core.PaymentState, error) {
	provider, ok := r.registry.Get(cfg.ProviderCode)
	if !ok || provider == nil {
		return core.PaymentState{}, fmt.Errorf("registrar: provider %q is not registered", cfg.ProviderCode)
	}
	paymentProvider, ok := provider.(core.PaymentStatusProvider)
	if !ok {
		return core.PaymentState{}, fmt.Errorf("registrar: provider %q does not expose payment status", cfg.ProviderCode)
	}
	return paymentProvider.PaymentStatus(ctx, cfg, reference)
}
