package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionStore persists subscriptions with bun. Secrets are sealed by
// the configured SecretProvider and never stored in plaintext.
type SubscriptionStore struct {
	db      *bun.DB
	repo    repository.Repository[*subscriptionRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

func NewSubscriptionStore(db *bun.DB, secrets core.SecretProvider) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*subscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{
		db:      db,
		repo:    repo,
		secrets: secrets,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create validates in, generates a secret when none is given and stores the
// subscription as active. The returned value carries the plaintext secret.
func (s *SubscriptionStore) Create(ctx context.Context, in core.CreateSubscriptionInput) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	in = core.NormalizeSubscriptionInput(in)
	if err := core.ValidateSubscriptionInput(in); err != nil {
		return core.Subscription{}, err
	}
	secret := in.Secret
	if secret == "" {
		generated, err := core.GenerateSecret()
		if err != nil {
			return core.Subscription{}, err
		}
		secret = generated
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(secret))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: encrypt subscription secret: %w", err)
	}

	now := s.now()
	sub := core.Subscription{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		URL:         in.URL,
		Timeout:     in.Timeout,
		Headers:     copyStringMap(in.Headers),
		Events:      append([]string{}, in.Events...),
		Filter:      in.Filter,
		Status:      core.SubscriptionStatusActive,
		RetryPolicy: *in.RetryPolicy,
		RateLimit:   in.RateLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	record := newSubscriptionRecord(sub, sealed)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		events := make([]*subscriptionEventRecord, 0, len(sub.Events))
		for _, event := range sub.Events {
			events = append(events, &subscriptionEventRecord{SubscriptionID: sub.ID, Event: event})
		}
		_, err := tx.NewInsert().Model(&events).Exec(ctx)
		return err
	})
	if err != nil {
		return core.Subscription{}, err
	}
	sub.Secret = secret
	return sub, nil
}

// FindBySubscribedEvent returns active subscriptions for event in creation
// order. Secrets are left empty; delivery reloads through Get.
func (s *SubscriptionStore) FindBySubscribedEvent(ctx context.Context, event string) ([]core.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	event = strings.TrimSpace(event)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.SubscriptionStatusActive)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			subscribed := s.db.NewSelect().
				Model((*subscriptionEventRecord)(nil)).
				Column("subscription_id").
				Where("event = ?", event)
			return q.Where("?TableAlias.id IN (?)", subscribed)
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Subscription, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain(""))
	}
	return out, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	record, err := s.findByID(ctx, s.db, id)
	if err != nil {
		return core.Subscription{}, err
	}
	return s.decrypted(ctx, record)
}

// UpdateStatistics applies patch with in-place increments so concurrent
// outcomes for one subscription never lose counts.
func (s *SubscriptionStore) UpdateStatistics(ctx context.Context, id string, patch core.StatisticsPatch) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	var updated *subscriptionRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewUpdate().
			Model((*subscriptionRecord)(nil)).
			Set("total_sent = total_sent + ?", patch.SentDelta).
			Set("total_success = total_success + ?", patch.SuccessDelta).
			Set("total_failed = total_failed + ?", patch.FailedDelta).
			Set("updated_at = ?", s.now())
		if patch.LastSuccessAt != nil {
			query = query.Set("last_success_at = ?", patch.LastSuccessAt.UTC())
		}
		if patch.LastFailureAt != nil {
			query = query.Set("last_failure_at = ?", patch.LastFailureAt.UTC())
		}
		if patch.LastErrorSummary != nil {
			query = query.Set("last_error_summary = ?", core.TruncateSummary(*patch.LastErrorSummary, core.ErrorSummaryLimit))
		}
		res, err := query.Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.NotFoundError(id)
		}
		updated, err = s.findByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return s.decrypted(ctx, updated)
}

func (s *SubscriptionStore) Deactivate(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, core.SubscriptionStatusFailed, reason)
}

func (s *SubscriptionStore) Reactivate(ctx context.Context, id string) (core.Subscription, error) {
	if err := s.setStatus(ctx, id, core.SubscriptionStatusActive, ""); err != nil {
		return core.Subscription{}, err
	}
	return s.Get(ctx, id)
}

func (s *SubscriptionStore) RevealSecret(ctx context.Context, id string) (string, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sub.Secret, nil
}

// RotateSecrets re-seals every secret the provider reports as written under
// an older key. It returns the number of rows rewritten.
func (s *SubscriptionStore) RotateSecrets(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	rotator, ok := s.secrets.(interface{ NeedsRotation(ciphertext []byte) bool })
	if !ok {
		return 0, nil
	}
	records := []*subscriptionRecord{}
	if err := s.db.NewSelect().Model(&records).Scan(ctx); err != nil {
		return 0, err
	}
	rotated := 0
	for _, record := range records {
		if !rotator.NeedsRotation(record.EncryptedSecret) {
			continue
		}
		plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedSecret)
		if err != nil {
			return rotated, fmt.Errorf("sqlstore: decrypt secret of %s: %w", record.ID, err)
		}
		sealed, err := s.secrets.Encrypt(ctx, plaintext)
		if err != nil {
			return rotated, fmt.Errorf("sqlstore: encrypt secret of %s: %w", record.ID, err)
		}
		if _, err := s.db.NewUpdate().
			Model((*subscriptionRecord)(nil)).
			Set("encrypted_secret = ?", sealed).
			Set("updated_at = ?", s.now()).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return rotated, err
		}
		rotated++
	}
	return rotated, nil
}

func (s *SubscriptionStore) setStatus(ctx context.Context, id string, status core.SubscriptionStatus, note string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	res, err := s.db.NewUpdate().
		Model((*subscriptionRecord)(nil)).
		Set("status = ?", string(status)).
		Set("status_note = ?", strings.TrimSpace(note)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.NotFoundError(id)
	}
	return nil
}

func (s *SubscriptionStore) findByID(ctx context.Context, db bun.IDB, id string) (*subscriptionRecord, error) {
	id = strings.TrimSpace(id)
	record := &subscriptionRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFoundError(id)
		}
		return nil, err
	}
	return record, nil
}

func (s *SubscriptionStore) decrypted(ctx context.Context, record *subscriptionRecord) (core.Subscription, error) {
	plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedSecret)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: decrypt subscription secret: %w", err)
	}
	return record.toDomain(string(plaintext)), nil
}
