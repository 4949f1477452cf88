// Package vipps adapts the Vipps/MobilePay webhooks API to the registrar
// provider contract. Wire shapes follow the published webhooks v1 and
// ePayment v1 references.
package vipps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-webhook-registrar/client"
	"github.com/goliatone/go-webhook-registrar/core"
)

const ProviderCode = "vipps"

const (
	productionBaseURL = "https://api.vipps.no"
	testBaseURL       = "https://apitest.vipps.no"

	webhooksPath = "webhooks/v1/webhooks"
	paymentsPath = "epayment/v1/payments"
)

// DefaultEvents is the payment-lifecycle subscription set registered when
// the caller does not override it.
var DefaultEvents = []string{
	"epayments.payment.created.v1",
	"epayments.payment.authorized.v1",
	"epayments.payment.captured.v1",
	"epayments.payment.cancelled.v1",
	"epayments.payment.refunded.v1",
}

func BaseURL(env core.Environment) (string, error) {
	switch env {
	case core.EnvironmentProduction:
		return productionBaseURL, nil
	case core.EnvironmentTest:
		return testBaseURL, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidEnvironment, env)
	}
}

type Caller interface {
	Call(ctx context.Context, cfg core.ProviderConfig, method string, path string, payload any) (int, []byte, error)
}

type Config struct {
	Client Caller
	Events []string
}

type Provider struct {
	client Caller
	events []string
}

func New(cfg Config) (*Provider, error) {
	caller := cfg.Client
	if caller == nil {
		built, err := client.New(client.Config{BaseURL: BaseURL})
		if err != nil {
			return nil, err
		}
		caller = built
	}
	events := cfg.Events
	if len(events) == 0 {
		events = DefaultEvents
	}
	return &Provider{
		client: caller,
		events: append([]string(nil), events...),
	}, nil
}

func (p *Provider) ID() string {
	return ProviderCode
}

type webhookPayload struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type listWebhooksResponse struct {
	Webhooks []webhookPayload `json:"webhooks"`
}

type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type createWebhookResponse struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

func (p *Provider) ListWebhooks(ctx context.Context, cfg core.ProviderConfig) ([]core.RemoteWebhook, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("vipps: client is not configured")
	}
	_, body, err := p.client.Call(ctx, cfg, http.MethodGet, webhooksPath, nil)
	if err != nil {
		return nil, err
	}

	var decoded listWebhooksResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("vipps: decode webhook list: %w", err)
		}
	}

	out := make([]core.RemoteWebhook, 0, len(decoded.Webhooks))
	for _, webhook := range decoded.Webhooks {
		out = append(out, core.RemoteWebhook{
			ID:          strings.TrimSpace(webhook.ID),
			CallbackURL: strings.TrimSpace(webhook.URL),
			Events:      append([]string(nil), webhook.Events...),
			// The webhooks API has no enabled flag; every listed
			// subscription is live.
			Active: true,
		})
	}
	return out, nil
}

func (p *Provider) CreateWebhook(ctx context.Context, cfg core.ProviderConfig, callbackURL string) (core.RemoteWebhook, error) {
	if p == nil || p.client == nil {
		return core.RemoteWebhook{}, fmt.Errorf("vipps: client is not configured")
	}
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return core.RemoteWebhook{}, fmt.Errorf("vipps: callback url is required")
	}

	_, body, err := p.client.Call(ctx, cfg, http.MethodPost, webhooksPath, createWebhookRequest{
		URL:    callbackURL,
		Events: append([]string(nil), p.events...),
	})
	if err != nil {
		return core.RemoteWebhook{}, err
	}

	var decoded createWebhookResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return core.RemoteWebhook{}, fmt.Errorf("vipps: decode webhook create response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return core.RemoteWebhook{}, fmt.Errorf("vipps: create response missing webhook id")
	}

	metadata := map[string]any{}
	if secret := strings.TrimSpace(decoded.Secret); secret != "" {
		// The signing secret is only ever returned on create; the host needs
		// it to verify inbound deliveries.
		metadata["signature_secret"] = secret
	}
	return core.RemoteWebhook{
		ID:          strings.TrimSpace(decoded.ID),
		CallbackURL: callbackURL,
		Events:      append([]string(nil), p.events...),
		Active:      true,
		Metadata:    metadata,
	}, nil
}

func (p *Provider) DeleteWebhook(ctx context.Context, cfg core.ProviderConfig, remoteWebhookID string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("vipps: client is not configured")
	}
	remoteWebhookID = strings.TrimSpace(remoteWebhookID)
	if remoteWebhookID == "" {
		return fmt.Errorf("vipps: remote webhook id is required")
	}

	_, _, err := p.client.Call(ctx, cfg, http.MethodDelete, webhooksPath+"/"+url.PathEscape(remoteWebhookID), nil)
	if err != nil {
		if core.IsRemoteAbsence(err) {
			return nil
		}
		return err
	}
	return nil
}

var _ core.WebhookProvider = (*Provider)(nil)
