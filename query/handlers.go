package query

import (
	"context"

	"github.com/goliatone/go-webhook-registrar/core"
)

type StatusReader interface {
	Report(ctx context.Context, cfg core.ProviderConfig) core.StatusSummary
}

type RegistrationReader interface {
	GetByProviderCode(ctx context.Context, providerCode string) (core.WebhookRegistration, error)
}

type PaymentStatusReader interface {
	PaymentStatus(ctx context.Context, cfg core.ProviderConfig, reference string) (core.PaymentState, error)
}

type ReportWebhookStatusQuery struct {
	reader StatusReader
}

func NewReportWebhookStatusQuery(reader StatusReader) *ReportWebhookStatusQuery {
	return &ReportWebhookStatusQuery{reader: reader}
}

func (q *ReportWebhookStatusQuery) Query(
	ctx context.Context,
	msg ReportWebhookStatusMessage,
) (core.StatusSummary, error) {
	if q == nil || q.reader == nil {
		return core.StatusSummary{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.Report(ctx, msg.Config), nil
}

type GetRegistrationQuery struct {
	reader RegistrationReader
}

func NewGetRegistrationQuery(reader RegistrationReader) *GetRegistrationQuery {
	return &GetRegistrationQuery{reader: reader}
}

func (q *GetRegistrationQuery) Query(
	ctx context.Context,
	msg GetRegistrationMessage,
) (core.WebhookRegistration, error) {
	if q == nil || q.reader == nil {
		return core.WebhookRegistration{}, queryDependencyError("query: registration reader is required")
	}
	return q.reader.GetByProviderCode(ctx, msg.ProviderCode)
}

type GetPaymentStatusQuery struct {
	reader PaymentStatusReader
}

func NewGetPaymentStatusQuery(reader PaymentStatusReader) *GetPaymentStatusQuery {
	return &GetPaymentStatusQuery{reader: reader}
}

func (q *GetPaymentStatusQuery) Query(
	ctx context.Context,
	msg GetPaymentStatusMessage,
) (core.PaymentState, error) {
	if q == nil || q.reader == nil {
		return core.PaymentState{}, queryDependencyError("query: payment status reader is required")
	}
	return q.reader.PaymentStatus(ctx, msg.Config, msg.Reference)
}
