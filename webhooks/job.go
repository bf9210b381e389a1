package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one pending delivery of a serialized envelope to one subscription.
// Payload is shared between the jobs of a trigger and must not be mutated.
type Job struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	Event          string    `json:"event"`
	Timestamp      string    `json:"timestamp"`
	Payload        []byte    `json:"payload"`
	Attempt        int       `json:"attempt"`
	CreatedAt      time.Time `json:"created_at"`

	// reserved marks a job that already holds a rate limiter reservation.
	reserved bool
}

func NewJob(subscriptionID, event, timestamp string, payload []byte, now time.Time) Job {
	return Job{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		Event:          event,
		Timestamp:      timestamp,
		Payload:        payload,
		CreatedAt:      now.UTC(),
	}
}

// Intake accepts jobs produced by the evaluator. The dispatcher is the
// in-memory intake; a durable bridge can sit in front of it.
type Intake interface {
	Enqueue(ctx context.Context, job Job) error
}
