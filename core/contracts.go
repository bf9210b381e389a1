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

// SubscriptionStore is the persistence boundary the delivery engine needs.
type SubscriptionStore interface {
	// FindBySubscribedEvent returns active subscriptions whose event list contains event.
	FindBySubscribedEvent(ctx context.Context, event string) ([]Subscription, error)
	Get(ctx context.Context, id string) (Subscription, error)
	// UpdateStatistics applies patch atomically and returns the updated subscription.
	UpdateStatistics(ctx context.Context, id string, patch StatisticsPatch) (Subscription, error)
	Deactivate(ctx context.Context, id string, reason string) error
}

// SubscriptionRegistry adds the management operations used by the host application.
type SubscriptionRegistry interface {
	SubscriptionStore
	Create(ctx context.Context, in CreateSubscriptionInput) (Subscription, error)
	Reactivate(ctx context.Context, id string) (Subscription, error)
	RevealSecret(ctx context.Context, id string) (string, error)
}

type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type AuditReader interface {
	List(ctx context.Context, filter AuditFilter) (AuditPage, error)
}

type AuditStore interface {
	AuditSink
	AuditReader
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// DeliveryRequest is one signed POST to a subscriber.
type DeliveryRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

type DeliveryResponse struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Sender performs the outbound call. A non-2xx status is returned as a
// response, not an error; errors are transport-class failures.
type Sender interface {
	Send(ctx context.Context, req DeliveryRequest) (DeliveryResponse, error)
}
