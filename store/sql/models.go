package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type registrationRecord struct {
	bun.BaseModel `bun:"table:webhook_registrations,alias:wr"`

	ID              string         `bun:"id,pk"`
	ProviderCode    string         `bun:"provider_code,notnull"`
	RemoteWebhookID string         `bun:"remote_webhook_id"`
	CallbackURL     string         `bun:"callback_url,notnull"`
	Status          string         `bun:"status,notnull"`
	LastCheckedAt   *time.Time     `bun:"last_checked_at,nullzero"`
	LastError       string         `bun:"last_error"`
	Metadata        map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt       *time.Time     `bun:"deleted_at,soft_delete"`
}
