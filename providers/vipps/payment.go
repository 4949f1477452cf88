package vipps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-webhook-registrar/core"
)

type paymentAmount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type paymentResponse struct {
	Reference string        `json:"reference"`
	State     string        `json:"state"`
	Amount    paymentAmount `json:"amount"`
}

// PaymentStatus looks up one payment by its merchant reference on the
// ePayment API. It is a read-only companion to the webhook lifecycle used
// by operator tooling to confirm a specific payment out of band.
func (p *Provider) PaymentStatus(ctx context.Context, cfg core.ProviderConfig, reference string) (core.PaymentState, error) {
	if p == nil || p.client == nil {
		return core.PaymentState{}, fmt.Errorf("vipps: client is not configured")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return core.PaymentState{}, fmt.Errorf("vipps: payment reference is required")
	}

	_, body, err := p.client.Call(
		ctx,
		cfg,
		http.MethodGet,
		paymentsPath+"/"+url.PathEscape(reference),
		nil,
	)
	if err != nil {
		return core.PaymentState{}, err
	}

	var decoded paymentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.PaymentState{}, fmt.Errorf("vipps: decode payment response: %w", err)
	}
	state := strings.TrimSpace(decoded.State)
	if state == "" {
		return core.PaymentState{}, fmt.Errorf("vipps: payment response missing state")
	}

	resolved := strings.TrimSpace(decoded.Reference)
	if resolved == "" {
		resolved = reference
	}
	return core.PaymentState{
		Reference: resolved,
		State:     state,
		Amount:    decoded.Amount.Value,
		Currency:  strings.TrimSpace(decoded.Amount.Currency),
	}, nil
}

var _ core.PaymentStatusProvider = (*Provider)(nil)
