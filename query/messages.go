package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-registrar/core"
)

const (
	TypeReportWebhookStatus = "registrar.query.webhook.report_status"
	TypeGetRegistration     = "registrar.query.registration.get"
	TypeGetPaymentStatus    = "registrar.query.payment.status"
)

type ReportWebhookStatusMessage struct {
	Config core.ProviderConfig
}

func (ReportWebhookStatusMessage) Type() string { return TypeReportWebhookStatus }

func (m ReportWebhookStatusMessage) Validate() error {
	if err := m.Config.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}

type GetRegistrationMessage struct {
	ProviderCode string
}

func (GetRegistrationMessage) Type() string { return TypeGetRegistration }

func (m GetRegistrationMessage) Validate() error {
	if strings.TrimSpace(m.ProviderCode) == "" {
		return fmt.Errorf("query: provider code is required")
	}
	return nil
}

type GetPaymentStatusMessage struct {
	Config    core.ProviderConfig
	Reference string
}

func (GetPaymentStatusMessage) Type() string { return TypeGetPaymentStatus }

func (m GetPaymentStatusMessage) Validate() error {
	if err := m.Config.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if strings.TrimSpace(m.Reference) == "" {
		return fmt.Errorf("query: payment reference is required")
	}
	return nil
}
