package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-registrar/core"
)

type MutatingService interface {
	Register(ctx context.Context, cfg core.ProviderConfig) (core.WebhookRegistration, error)
	CheckStatus(ctx context.Context, cfg core.ProviderConfig) (core.WebhookRegistration, error)
	Deregister(ctx context.Context, cfg core.ProviderConfig) error
}

type RegisterWebhookCommand struct {
	service MutatingService
}

func NewRegisterWebhookCommand(service MutatingService) *RegisterWebhookCommand {
	return &RegisterWebhookCommand{service: service}
}

func (c *RegisterWebhookCommand) Execute(ctx context.Context, msg RegisterWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: register service is required")
	}
	out, err := c.service.Register(ctx, msg.Config)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeregisterWebhookCommand struct {
	service MutatingService
}

func NewDeregisterWebhookCommand(service MutatingService) *DeregisterWebhookCommand {
	return &DeregisterWebhookCommand{service: service}
}

func (c *DeregisterWebhookCommand) Execute(ctx context.Context, msg DeregisterWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: deregister service is required")
	}
	return c.service.Deregister(ctx, msg.Config)
}

type CheckWebhookStatusCommand struct {
	service MutatingService
}

func NewCheckWebhookStatusCommand(service MutatingService) *CheckWebhookStatusCommand {
	return &CheckWebhookStatusCommand{service: service}
}

func (c *CheckWebhookStatusCommand) Execute(ctx context.Context, msg CheckWebhookStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: status check service is required")
	}
	out, err := c.service.CheckStatus(ctx, msg.Config)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
