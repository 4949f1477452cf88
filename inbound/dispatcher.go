package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-registrar/core"
)

// Handler consumes a verified, deduped delivery. A non-accepted result
// or a 5xx status releases the dedupe claim so the provider's redelivery
// gets another attempt.
type Handler interface {
	ProviderCode() string
	Handle(ctx context.Context, delivery Delivery) (Result, error)
}

type DeliveryKeyExtractor func(delivery Delivery) (string, error)

// ClaimStore tracks which deliveries are in flight or already handled.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type Dispatcher struct {
	Verifier   Verifier
	Claims     ClaimStore
	ExtractKey DeliveryKeyExtractor
	ClaimTTL   time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher(verifier Verifier, claims ClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Claims:     claims,
		ExtractKey: DefaultDeliveryKeyExtractor,
		ClaimTTL:   10 * time.Minute,
		handlers:   map[string]Handler{},
	}
}

func (d *Dispatcher) Register(handler Handler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	providerCode := strings.TrimSpace(strings.ToLower(handler.ProviderCode()))
	if providerCode == "" {
		return inboundBadInput("inbound: handler provider code is required", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[providerCode]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for provider %q", providerCode),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.RegistrarErrorLocked,
			map[string]any{"provider_code": providerCode},
		)
	}
	d.handlers[providerCode] = handler
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) (Result, error) {
	if d == nil {
		return Result{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	providerCode := strings.TrimSpace(strings.ToLower(delivery.ProviderCode))
	if providerCode == "" {
		return Result{}, inboundBadInput("inbound: provider code is required", nil)
	}
	delivery.ProviderCode = providerCode
	meta := map[string]any{"provider_code": providerCode}

	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, delivery); err != nil {
			return Result{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"provider_code": providerCode,
					"rejected":      true,
				},
			}, err
		}
	}

	claimID := ""
	if d.Claims != nil {
		extractor := d.ExtractKey
		if extractor == nil {
			extractor = DefaultDeliveryKeyExtractor
		}
		key, err := extractor(delivery)
		if err != nil {
			return Result{}, err
		}
		var accepted bool
		claimID, accepted, err = d.Claims.Claim(ctx, providerCode+":"+key, d.claimTTL())
		if err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: delivery claim failed",
				http.StatusInternalServerError,
				core.RegistrarErrorInternal,
				meta,
			)
		}
		if !accepted {
			return Result{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"provider_code": providerCode,
					"deduped":       true,
				},
			}, nil
		}
	}

	handler := d.handlerFor(providerCode)
	if handler == nil {
		return Result{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for provider %q", providerCode),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.RegistrarErrorProviderNotFound,
			meta,
		)
	}

	result, err := handler.Handle(ctx, delivery)
	if err != nil {
		handlerErr := inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: delivery handler failed",
			http.StatusBadGateway,
			core.RegistrarErrorRemoteFailure,
			meta,
		)
		d.releaseClaim(ctx, claimID, handlerErr)
		return Result{}, handlerErr
	}
	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := inboundError(
			fmt.Sprintf("inbound: handler returned retryable status %d", result.StatusCode),
			goerrors.CategoryOperation,
			http.StatusBadGateway,
			core.RegistrarErrorRemoteFailure,
			map[string]any{
				"provider_code": providerCode,
				"status_code":   result.StatusCode,
			},
		)
		d.releaseClaim(ctx, claimID, retryErr)
		return result, retryErr
	}

	if d.Claims != nil && claimID != "" {
		if err := d.Claims.Complete(ctx, claimID); err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: complete delivery claim",
				http.StatusInternalServerError,
				core.RegistrarErrorInternal,
				meta,
			)
		}
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["provider_code"] = providerCode
	return result, nil
}

func (d *Dispatcher) releaseClaim(ctx context.Context, claimID string, cause error) {
	if d == nil || d.Claims == nil || claimID == "" {
		return
	}
	_ = d.Claims.Fail(ctx, claimID, cause, time.Time{})
}

func (d *Dispatcher) handlerFor(providerCode string) Handler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[providerCode]
}

func (d *Dispatcher) claimTTL() time.Duration {
	if d != nil && d.ClaimTTL > 0 {
		return d.ClaimTTL
	}
	return 10 * time.Minute
}

// DefaultDeliveryKeyExtractor prefers an explicit delivery id from the
// metadata, then the request id headers Vipps and MobilePay send.
func DefaultDeliveryKeyExtractor(delivery Delivery) (string, error) {
	if delivery.Metadata != nil {
		if value := trimAny(delivery.Metadata["delivery_id"]); value != "" {
			return value, nil
		}
		if value := trimAny(delivery.Metadata["message_id"]); value != "" {
			return value, nil
		}
	}
	if delivery.Headers != nil {
		for _, header := range []string{"x-delivery-id", "x-ms-request-id", "idempotency-key"} {
			if value := headerValue(delivery.Headers, header); value != "" {
				return value, nil
			}
		}
	}
	return "", inboundBadInput("inbound: delivery id is required for dedupe", map[string]any{
		"provider_code": delivery.ProviderCode,
	})
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
