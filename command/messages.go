package command

import (
	"fmt"

	"github.com/goliatone/go-webhook-registrar/core"
)

const (
	TypeRegisterWebhook   = "registrar.command.webhook.register"
	TypeDeregisterWebhook = "registrar.command.webhook.deregister"
	TypeCheckWebhook      = "registrar.command.webhook.check_status"
)

type RegisterWebhookMessage struct {
	Config core.ProviderConfig
}

func (RegisterWebhookMessage) Type() string { return TypeRegisterWebhook }

func (m RegisterWebhookMessage) Validate() error {
	return validateConfig(m.Config)
}

type DeregisterWebhookMessage struct {
	Config core.ProviderConfig
}

func (DeregisterWebhookMessage) Type() string { return TypeDeregisterWebhook }

func (m DeregisterWebhookMessage) Validate() error {
	return validateConfig(m.Config)
}

type CheckWebhookStatusMessage struct {
	Config core.ProviderConfig
}

func (CheckWebhookStatusMessage) Type() string { return TypeCheckWebhook }

func (m CheckWebhookStatusMessage) Validate() error {
	return validateConfig(m.Config)
}

func validateConfig(cfg core.ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}
