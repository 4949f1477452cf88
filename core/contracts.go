package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// WebhookProvider is one remote payment provider's webhook-management API.
// Implementations live under providers/ and issue their calls through the
// shared HTTP client.
type WebhookProvider interface {
	ID() string

	ListWebhooks(ctx context.Context, cfg ProviderConfig) ([]RemoteWebhook, error)
	CreateWebhook(ctx context.Context, cfg ProviderConfig, callbackURL string) (RemoteWebhook, error)
	DeleteWebhook(ctx context.Context, cfg ProviderConfig, remoteWebhookID string) error
}

// PaymentStatusProvider is implemented by providers that also expose a
// payment-status endpoint next to their webhook-management API.
type PaymentStatusProvider interface {
	PaymentStatus(ctx context.Context, cfg ProviderConfig, reference string) (PaymentState, error)
}

type PaymentState struct {
	Reference string
	State     string
	Amount    int64
	Currency  string
	Metadata  map[string]any
}

type Registry interface {
	Register(provider WebhookProvider) error
	Get(providerCode string) (WebhookProvider, bool)
	List() []WebhookProvider
}

type UpsertRegistrationInput struct {
	ProviderCode    string
	RemoteWebhookID string
	CallbackURL     string
	Status          RegistrationStatus
	LastCheckedAt   *time.Time
	LastError       string
	Metadata        map[string]any
}

type RegistrationStore interface {
	// Upsert writes the registration keyed by provider code. On update the
	// input metadata is merged over the stored map and an empty
	// RemoteWebhookID keeps the stored id: status rechecks rebuild their
	// input from the remote list, which never carries the create-time
	// signing secret, and must not erase it.
	Upsert(ctx context.Context, in UpsertRegistrationInput) (WebhookRegistration, error)
	GetByProviderCode(ctx context.Context, providerCode string) (WebhookRegistration, error)
	UpdateState(ctx context.Context, providerCode string, status RegistrationStatus, lastError string, checkedAt time.Time) error
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// RegistrationLocker serializes concurrent lifecycle operations for the same
// provider code so at most one remote create can win.
type RegistrationLocker interface {
	Acquire(ctx context.Context, providerCode string, ttl time.Duration) (LockHandle, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
