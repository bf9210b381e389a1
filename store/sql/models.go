package sqlstore

import (
	"time"

	"github.com/goliatone/go-oee-hooks/core"
	"github.com/uptrace/bun"
)

type subscriptionRecord struct {
	bun.BaseModel `bun:"table:oee_webhook_subscriptions,alias:ows"`

	ID                string            `bun:"id,pk"`
	Name              string            `bun:"name,notnull"`
	Description       string            `bun:"description"`
	URL               string            `bun:"url,notnull"`
	TimeoutMS         int64             `bun:"timeout_ms,notnull"`
	Headers           map[string]string `bun:"headers,type:jsonb,notnull"`
	EncryptedSecret   []byte            `bun:"encrypted_secret,notnull"`
	Events            []string          `bun:"events,type:jsonb,notnull"`
	Filter            core.Filter       `bun:"filter,type:jsonb,notnull"`
	Status            string            `bun:"status,notnull"`
	StatusNote        string            `bun:"status_note"`
	MaxRetries        int               `bun:"max_retries,notnull"`
	InitialDelayMS    int64             `bun:"initial_delay_ms,notnull"`
	BackoffMultiplier float64           `bun:"backoff_multiplier,notnull"`
	RateLimit         float64           `bun:"rate_limit,notnull"`
	TotalSent         int               `bun:"total_sent,notnull"`
	TotalSuccess      int               `bun:"total_success,notnull"`
	TotalFailed       int               `bun:"total_failed,notnull"`
	LastSuccessAt     *time.Time        `bun:"last_success_at,nullzero"`
	LastFailureAt     *time.Time        `bun:"last_failure_at,nullzero"`
	LastErrorSummary  string            `bun:"last_error_summary"`
	CreatedAt         time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// subscriptionEventRecord indexes subscriptions by event name so lookups stay
// portable across dialects without JSON operators.
type subscriptionEventRecord struct {
	bun.BaseModel `bun:"table:oee_webhook_subscription_events,alias:owse"`

	SubscriptionID string `bun:"subscription_id,pk"`
	Event          string `bun:"event,pk"`
}

type auditEntryRecord struct {
	bun.BaseModel `bun:"table:oee_webhook_audit_entries,alias:owae"`

	ID             string         `bun:"id,pk"`
	SubscriptionID string         `bun:"subscription_id,notnull"`
	JobID          string         `bun:"job_id,notnull"`
	Event          string         `bun:"event,notnull"`
	Outcome        string         `bun:"outcome,notnull"`
	Attempt        int            `bun:"attempt,notnull"`
	MaxAttempts    int            `bun:"max_attempts,notnull"`
	StatusCode     int            `bun:"status_code,notnull"`
	DurationMS     int64          `bun:"duration_ms,notnull"`
	Error          string         `bun:"error"`
	Message        string         `bun:"message,notnull"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
