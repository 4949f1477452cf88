package inbound

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-registrar/core"
)

const (
	defaultDateHeader        = "x-ms-date"
	defaultContentHashHeader = "x-ms-content-sha256"
	defaultSignatureHeader   = "authorization"
	defaultMaxClockSkew      = 5 * time.Minute

	registrationSecretKey = "signature_secret"
)

// Delivery is one inbound webhook request as handed over by the host's
// HTTP layer. PathAndQuery and Host must match what the provider signed.
type Delivery struct {
	ProviderCode string
	Method       string
	Host         string
	PathAndQuery string
	Headers      map[string]string
	Body         []byte
	Metadata     map[string]any
}

type Result struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type Verifier interface {
	Verify(ctx context.Context, delivery Delivery) error
}

// SecretSource resolves the webhook signing secret for a provider. The
// canonical implementation reads it back from the registration ledger.
type SecretSource interface {
	SignatureSecret(ctx context.Context, providerCode string) (string, error)
}

type RegistrationSecretSource struct {
	store core.RegistrationStore
}

func NewRegistrationSecretSource(store core.RegistrationStore) *RegistrationSecretSource {
	return &RegistrationSecretSource{store: store}
}

func (s *RegistrationSecretSource) SignatureSecret(ctx context.Context, providerCode string) (string, error) {
	if s == nil || s.store == nil {
		return "", inboundInternal("inbound: registration store is not configured", nil)
	}
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return "", inboundBadInput("inbound: provider code is required", nil)
	}
	record, err := s.store.GetByProviderCode(ctx, providerCode)
	if err != nil {
		return "", err
	}
	secret, _ := record.Metadata[registrationSecretKey].(string)
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", inboundInternal(
			fmt.Sprintf("inbound: registration for %q carries no signing secret", providerCode),
			map[string]any{"provider_code": providerCode},
		)
	}
	return secret, nil
}

// HMACVerifier checks the Vipps/MobilePay delivery signature scheme:
// the signed string is METHOD, path-and-query, and the joined
// date;host;content-hash triple, keyed with the per-registration secret.
type HMACVerifier struct {
	Secrets SecretSource

	DateHeader        string
	ContentHashHeader string
	SignatureHeader   string
	MaxClockSkew      time.Duration
	Now               func() time.Time
}

func NewHMACVerifier(secrets SecretSource) *HMACVerifier {
	return &HMACVerifier{
		Secrets:           secrets,
		DateHeader:        defaultDateHeader,
		ContentHashHeader: defaultContentHashHeader,
		SignatureHeader:   defaultSignatureHeader,
		MaxClockSkew:      defaultMaxClockSkew,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (v *HMACVerifier) Verify(ctx context.Context, delivery Delivery) error {
	if v == nil || v.Secrets == nil {
		return inboundInternal("inbound: secret source is not configured", nil)
	}
	providerCode := strings.TrimSpace(delivery.ProviderCode)
	if providerCode == "" {
		return inboundBadInput("inbound: provider code is required", nil)
	}
	meta := map[string]any{"provider_code": providerCode}

	date := headerValue(delivery.Headers, v.dateHeader())
	if date == "" {
		return inboundUnauthorized(nil, "inbound: delivery date header is missing", meta)
	}
	if err := v.checkClockSkew(date); err != nil {
		return inboundUnauthorized(err, "inbound: delivery timestamp rejected", meta)
	}

	contentHash := headerValue(delivery.Headers, v.contentHashHeader())
	if contentHash == "" {
		return inboundUnauthorized(nil, "inbound: content hash header is missing", meta)
	}
	bodySum := sha256.Sum256(delivery.Body)
	expectedHash := base64.StdEncoding.EncodeToString(bodySum[:])
	if subtle.ConstantTimeCompare([]byte(expectedHash), []byte(contentHash)) != 1 {
		return inboundUnauthorized(nil, "inbound: content hash mismatch", meta)
	}

	signature := extractSignature(headerValue(delivery.Headers, v.signatureHeader()))
	if signature == "" {
		return inboundUnauthorized(nil, "inbound: delivery signature is missing", meta)
	}
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return inboundUnauthorized(err, "inbound: delivery signature is not valid base64", meta)
	}

	secret, err := v.Secrets.SignatureSecret(ctx, providerCode)
	if err != nil {
		return err
	}

	method := strings.ToUpper(strings.TrimSpace(delivery.Method))
	if method == "" {
		method = http.MethodPost
	}
	stringToSign := method + "\n" +
		strings.TrimSpace(delivery.PathAndQuery) + "\n" +
		date + ";" + strings.TrimSpace(delivery.Host) + ";" + expectedHash

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	if !hmac.Equal(mac.Sum(nil), provided) {
		return inboundUnauthorized(nil, "inbound: delivery signature mismatch", meta)
	}
	return nil
}

// SignDelivery computes the signature for a delivery. Tests and local
// simulators use it to produce requests the verifier accepts.
func SignDelivery(secret string, method string, pathAndQuery string, host string, date string, body []byte) string {
	bodySum := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(bodySum[:])
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	stringToSign := method + "\n" +
		strings.TrimSpace(pathAndQuery) + "\n" +
		date + ";" + strings.TrimSpace(host) + ";" + contentHash
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ContentHash returns the base64 SHA-256 digest the provider sends in
// the content hash header.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (v *HMACVerifier) checkClockSkew(date string) error {
	skew := v.MaxClockSkew
	if skew <= 0 {
		return nil
	}
	parsed, err := http.ParseTime(date)
	if err != nil {
		return fmt.Errorf("inbound: parse delivery date %q: %w", date, err)
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	if diff := now.Sub(parsed.UTC()); diff > skew || diff < -skew {
		return fmt.Errorf("inbound: delivery timestamp outside %s window", skew)
	}
	return nil
}

func (v *HMACVerifier) dateHeader() string {
	if v != nil && strings.TrimSpace(v.DateHeader) != "" {
		return v.DateHeader
	}
	return defaultDateHeader
}

func (v *HMACVerifier) contentHashHeader() string {
	if v != nil && strings.TrimSpace(v.ContentHashHeader) != "" {
		return v.ContentHashHeader
	}
	return defaultContentHashHeader
}

func (v *HMACVerifier) signatureHeader() string {
	if v != nil && strings.TrimSpace(v.SignatureHeader) != "" {
		return v.SignatureHeader
	}
	return defaultSignatureHeader
}

// extractSignature accepts either a bare base64 signature or the
// HMAC-SHA256 authorization form with a trailing Signature parameter.
func extractSignature(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if idx := strings.Index(raw, "Signature="); idx >= 0 {
		return strings.TrimSpace(raw[idx+len("Signature="):])
	}
	return raw
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
