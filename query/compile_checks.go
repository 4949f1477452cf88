package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-registrar/core"
)

var (
	_ gocmd.Querier[ReportWebhookStatusMessage, core.StatusSummary]   = (*ReportWebhookStatusQuery)(nil)
	_ gocmd.Querier[GetRegistrationMessage, core.WebhookRegistration] = (*GetRegistrationQuery)(nil)
	_ gocmd.Querier[GetPaymentStatusMessage, core.PaymentState]       = (*GetPaymentStatusQuery)(nil)
)
