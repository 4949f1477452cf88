// Package client is the shared HTTP layer for provider webhook-management
// APIs. It owns authentication headers, timeouts, and the error taxonomy;
// provider adapters own paths and payload shapes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-registrar/core"
	"github.com/google/uuid"
)

const (
	defaultRequestTimeout    = 10 * time.Second
	maxResponseBodyBytes     = 1 << 20
	networkRetryAttempts     = 1
	headerSubscriptionKey    = "Ocp-Apim-Subscription-Key"
	headerMerchantSerial     = "Merchant-Serial-Number"
	headerIdempotencyKey     = "Idempotency-Key"
	headerVippsSystemName    = "Vipps-System-Name"
	defaultSystemName        = "go-webhook-registrar"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BaseURLResolver maps an environment to the provider API origin.
type BaseURLResolver func(env core.Environment) (string, error)

type Config struct {
	BaseURL        BaseURLResolver
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
	SystemName     string
	Now            func() time.Time
	// NewIdempotencyKey mints the Idempotency-Key sent with mutating calls.
	// Defaults to a random UUID per call.
	NewIdempotencyKey func() string
}

// Client issues authenticated calls against a provider's REST API. It holds
// no mutable state beyond its configuration; credentials travel with every
// call inside the ProviderConfig.
type Client struct {
	config     Config
	httpClient HTTPDoer
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == nil {
		return nil, fmt.Errorf("client: base url resolver is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	systemName := strings.TrimSpace(cfg.SystemName)
	if systemName == "" {
		systemName = defaultSystemName
	}
	newKey := cfg.NewIdempotencyKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Client{
		config: Config{
			BaseURL:           cfg.BaseURL,
			RequestTimeout:    timeout,
			SystemName:        systemName,
			Now:               now,
			NewIdempotencyKey: newKey,
		},
		httpClient: httpClient,
	}, nil
}

// Call performs one authenticated round trip and returns the HTTP status
// plus the (size-capped) response body. Non-2xx responses come back as
// typed errors: 401/403 as auth failures, anything else as remote failures
// carrying the body. Transport errors are retried exactly once.
func (c *Client) Call(
	ctx context.Context,
	cfg core.ProviderConfig,
	method string,
	path string,
	payload any,
) (int, []byte, error) {
	if c == nil || c.httpClient == nil {
		return 0, nil, internalError("client: http client is not configured")
	}
	if err := cfg.Validate(); err != nil {
		return 0, nil, badInputError(err.Error())
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return 0, nil, badInputError("client: http method is required")
	}
	endpoint, err := c.resolveEndpoint(cfg.Environment, path)
	if err != nil {
		return 0, nil, badInputError(err.Error())
	}

	var encoded []byte
	if payload != nil {
		encoded, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, badInputError(fmt.Sprintf("client: encode payload: %v", err))
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// One key per logical call: the transport retry below must replay as
	// the same operation, not register a second one.
	idempotencyKey := ""
	if method != http.MethodGet && method != http.MethodHead && c.config.NewIdempotencyKey != nil {
		idempotencyKey = c.config.NewIdempotencyKey()
	}

	var lastErr error
	for attempt := 0; attempt <= networkRetryAttempts; attempt++ {
		status, body, callErr := c.do(ctx, cfg, method, endpoint, encoded, idempotencyKey)
		if callErr == nil {
			return status, body, nil
		}
		lastErr = callErr
		if !core.IsNetworkError(callErr) {
			return status, body, callErr
		}
		if ctx.Err() != nil {
			return status, body, callErr
		}
	}
	return 0, nil, lastErr
}

func (c *Client) do(
	ctx context.Context,
	cfg core.ProviderConfig,
	method string,
	endpoint string,
	encoded []byte,
	idempotencyKey string,
) (int, []byte, error) {
	requestCtx := ctx
	cancel := func() {}
	if c.config.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
	}
	defer cancel()

	var reader io.Reader
	if len(encoded) > 0 {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return 0, nil, internalError(fmt.Sprintf("client: build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if len(encoded) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))
	req.Header.Set(headerVippsSystemName, c.config.SystemName)
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}
	if key := strings.TrimSpace(cfg.SubscriptionKey); key != "" {
		req.Header.Set(headerSubscriptionKey, key)
	}
	if serial := strings.TrimSpace(cfg.MerchantSerialNumber); serial != "" {
		req.Header.Set(headerMerchantSerial, serial)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, networkError(cfg, method, endpoint, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return response.StatusCode, nil, networkError(cfg, method, endpoint, readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return response.StatusCode, nil, remoteError(
			cfg,
			response.StatusCode,
			fmt.Sprintf("client: response exceeds %d bytes", maxResponseBodyBytes),
			nil,
		)
	}

	switch {
	case response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices:
		return response.StatusCode, body, nil
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return response.StatusCode, body, authError(cfg, response.StatusCode)
	default:
		return response.StatusCode, body, remoteError(cfg, response.StatusCode, remoteMessage(body), body)
	}
}

func (c *Client) resolveEndpoint(env core.Environment, path string) (string, error) {
	base, err := c.config.BaseURL(env)
	if err != nil {
		return "", err
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("client: base url for environment %q is empty", env)
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("client: base url %q is not an absolute url", base)
	}
	return base + "/" + strings.TrimLeft(strings.TrimSpace(path), "/"), nil
}

func remoteMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "client: remote call failed"
	}
	payload := map[string]any{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message", "error_description", "error"} {
			if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	if len(trimmed) > 256 {
		trimmed = trimmed[:256]
	}
	return trimmed
}
