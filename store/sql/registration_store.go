package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhook-registrar/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RegistrationStore struct {
	db   *bun.DB
	repo repository.Repository[*registrationRecord]
}

func NewRegistrationStore(db *bun.DB) (*RegistrationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*registrationRecord](db, registrationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid registration repository wiring: %w", err)
		}
	}
	return &RegistrationStore{
		db:   db,
		repo: repo,
	}, nil
}

// Upsert keeps the at-most-one-registration-per-provider invariant at the
// storage layer: the provider code is the reconciliation key, so repeated
// lifecycle calls update one row instead of accumulating rows. Metadata is
// merged over the stored map and an empty remote webhook id keeps the stored
// one, so values captured once (the create-time signing secret in
// particular) survive status rechecks whose inputs never carry them.
func (s *RegistrationStore) Upsert(ctx context.Context, in core.UpsertRegistrationInput) (core.WebhookRegistration, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: registration store is not configured")
	}
	in.ProviderCode = strings.TrimSpace(in.ProviderCode)
	in.RemoteWebhookID = strings.TrimSpace(in.RemoteWebhookID)
	in.CallbackURL = strings.TrimSpace(in.CallbackURL)
	in.LastError = strings.TrimSpace(in.LastError)
	if in.ProviderCode == "" {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: provider code is required")
	}
	if in.CallbackURL == "" {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: callback url is required")
	}
	if strings.TrimSpace(string(in.Status)) == "" {
		in.Status = core.RegistrationStatusUnregistered
	}
	now := time.Now().UTC()

	var out core.WebhookRegistration
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findByProviderTx(ctx, tx, in.ProviderCode)
		if err != nil {
			return err
		}
		if existing == nil {
			record := newRegistrationRecord(in, now)
			record.ID = uuid.NewString()
			if _, createErr := tx.NewInsert().Model(record).Exec(ctx); createErr != nil {
				return createErr
			}
			out = record.toDomain()
			return nil
		}

		existing.ProviderCode = in.ProviderCode
		if in.RemoteWebhookID != "" {
			existing.RemoteWebhookID = in.RemoteWebhookID
		}
		existing.CallbackURL = in.CallbackURL
		existing.Status = string(in.Status)
		existing.LastError = in.LastError
		existing.Metadata = mergeAnyMap(existing.Metadata, in.Metadata)
		existing.UpdatedAt = now
		existing.DeletedAt = nil
		if in.LastCheckedAt == nil {
			existing.LastCheckedAt = nil
		} else {
			checkedAt := *in.LastCheckedAt
			existing.LastCheckedAt = &checkedAt
		}

		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.WebhookRegistration{}, err
	}

	return out, nil
}

func (s *RegistrationStore) GetByProviderCode(ctx context.Context, providerCode string) (core.WebhookRegistration, error) {
	if s == nil || s.repo == nil {
		return core.WebhookRegistration{}, fmt.Errorf("sqlstore: registration store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider_code", "=", strings.TrimSpace(providerCode)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.WebhookRegistration{}, err
	}
	if len(records) == 0 {
		return core.WebhookRegistration{}, fmt.Errorf(
			"%w: provider %q",
			core.ErrRegistrationNotFound,
			providerCode,
		)
	}
	return records[0].toDomain(), nil
}

func (s *RegistrationStore) UpdateState(
	ctx context.Context,
	providerCode string,
	status core.RegistrationStatus,
	lastError string,
	checkedAt time.Time,
) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: registration store is not configured")
	}
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return fmt.Errorf("sqlstore: provider code is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.findByProviderTx(ctx, tx, providerCode)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: provider %q", core.ErrRegistrationNotFound, providerCode)
		}
		record.Status = string(status)
		record.LastError = strings.TrimSpace(lastError)
		record.UpdatedAt = time.Now().UTC()
		if !checkedAt.IsZero() {
			normalized := checkedAt.UTC()
			record.LastCheckedAt = &normalized
		}
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *RegistrationStore) findByProviderTx(
	ctx context.Context,
	tx bun.Tx,
	providerCode string,
) (*registrationRecord, error) {
	record := &registrationRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider_code = ?", strings.TrimSpace(providerCode)).
		Where("?TableAlias.deleted_at IS NULL").
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return nil, nil
	}
	return record, nil
}
