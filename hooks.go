// Package hooks delivers OEE domain events to subscriber webhooks: signed
// POSTs, bounded concurrency, exponential retries and automatic deactivation
// of subscriptions that keep failing.
package hooks

import (
	"context"

	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

type Config = core.Config

type Event = core.Event
type Subscription = core.Subscription
type CreateSubscriptionInput = core.CreateSubscriptionInput
type RetryPolicy = core.RetryPolicy
type Filter = core.Filter
type AuditEntry = core.AuditEntry
type AuditFilter = core.AuditFilter
type AuditPage = core.AuditPage

type SubscriptionStore = core.SubscriptionStore
type SubscriptionRegistry = core.SubscriptionRegistry
type AuditStore = core.AuditStore
type SecretProvider = core.SecretProvider
type Sender = core.Sender
type MetricsRecorder = core.MetricsRecorder

type Engine = webhooks.Engine
type Option = webhooks.Option
type TriggerResult = webhooks.TriggerResult
type Snapshot = webhooks.Snapshot

var (
	WithLogger          = webhooks.WithLogger
	WithLoggerProvider  = webhooks.WithLoggerProvider
	WithMetricsRecorder = webhooks.WithMetricsRecorder
	WithSender          = webhooks.WithSender
	WithAuditSink       = webhooks.WithAuditSink
	WithScheduler       = webhooks.WithScheduler
	WithIntake          = webhooks.WithIntake
	WithClock           = webhooks.WithClock
)

// Verify checks an X-Webhook-Signature header value against body.
var Verify = webhooks.Verify

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig builds a Config from defaults, the provider's raw values and
// runtime overrides, in that order of precedence.
func LoadConfig(ctx context.Context, provider core.ConfigProvider, resolver core.OptionsResolver, runtime Config) (Config, error) {
	return core.LoadConfig(ctx, provider, resolver, runtime)
}

func NewEngine(cfg Config, store SubscriptionStore, opts ...Option) (*Engine, error) {
	return webhooks.NewEngine(cfg, store, opts...)
}
