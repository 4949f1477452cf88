package gojob

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-registrar/core"
)

const (
	paramProviderCode   = "provider_code"
	paramEnvironment    = "environment"
	paramAPIKey         = "api_key"
	paramSubscription   = "subscription_key"
	paramMerchantSerial = "merchant_serial_number"
	paramCallbackBase   = "callback_base_url"
)

type StatusChecker interface {
	CheckStatus(ctx context.Context, cfg core.ProviderConfig) (core.WebhookRegistration, error)
}

// StatusRecheckScheduler enqueues periodic status recheck jobs through the
// configured queue. The idempotency key folds in the provider code so
// duplicate schedules for the same provider dedupe at the queue.
type StatusRecheckScheduler struct {
	enqueuer core.JobEnqueuer
}

func NewStatusRecheckScheduler(enqueuer core.JobEnqueuer) *StatusRecheckScheduler {
	return &StatusRecheckScheduler{enqueuer: enqueuer}
}

func (s *StatusRecheckScheduler) Schedule(ctx context.Context, cfg core.ProviderConfig) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("gojob: %w", err)
	}
	return s.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          JobIDStatusRecheck,
		Parameters:     configToParameters(cfg),
		IdempotencyKey: JobIDStatusRecheck + "::" + cfg.ProviderCode,
		DedupPolicy:    "drop",
	})
}

// StatusRecheckRunner executes a dequeued recheck job against the service.
type StatusRecheckRunner struct {
	checker StatusChecker
}

func NewStatusRecheckRunner(checker StatusChecker) *StatusRecheckRunner {
	return &StatusRecheckRunner{checker: checker}
}

func (r *StatusRecheckRunner) Run(ctx context.Context, msg *core.JobExecutionMessage) error {
	if r == nil || r.checker == nil {
		return fmt.Errorf("gojob: status checker is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDStatusRecheck {
		return fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	cfg, err := parametersToConfig(msg.Parameters)
	if err != nil {
		return err
	}
	_, err = r.checker.CheckStatus(ctx, cfg)
	return err
}

func configToParameters(cfg core.ProviderConfig) map[string]any {
	return map[string]any{
		paramProviderCode:   cfg.ProviderCode,
		paramEnvironment:    string(cfg.Environment),
		paramAPIKey:         cfg.APIKey,
		paramSubscription:   cfg.SubscriptionKey,
		paramMerchantSerial: cfg.MerchantSerialNumber,
		paramCallbackBase:   cfg.CallbackBaseURL,
	}
}

func parametersToConfig(params map[string]any) (core.ProviderConfig, error) {
	env, err := core.ParseEnvironment(stringParam(params, paramEnvironment))
	if err != nil {
		return core.ProviderConfig{}, fmt.Errorf("gojob: %w", err)
	}
	cfg := core.ProviderConfig{
		ProviderCode:         stringParam(params, paramProviderCode),
		Environment:          env,
		APIKey:               stringParam(params, paramAPIKey),
		SubscriptionKey:      stringParam(params, paramSubscription),
		MerchantSerialNumber: stringParam(params, paramMerchantSerial),
		CallbackBaseURL:      stringParam(params, paramCallbackBase),
	}
	if err := cfg.Validate(); err != nil {
		return core.ProviderConfig{}, fmt.Errorf("gojob: %w", err)
	}
	return cfg, nil
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
