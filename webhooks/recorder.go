package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

// DeliveryDetails describes one attempt. Attempt is 1-based.
type DeliveryDetails struct {
	JobID         string
	Event         string
	Attempt       int
	MaxAttempts   int
	StatusCode    int
	Duration      time.Duration
	Err           error
	NextAttemptAt *time.Time
	RetryDelay    time.Duration
	Metadata      map[string]any
}

// Recorder updates subscription statistics, writes audit entries and applies
// auto-deactivation. It never returns errors to the dispatcher.
type Recorder struct {
	store        core.SubscriptionStore
	audit        core.AuditSink
	observer     *core.Observer
	escalation   core.EscalationConfig
	summaryLimit int
	now          func() time.Time
}

func NewRecorder(
	store core.SubscriptionStore,
	audit core.AuditSink,
	observer *core.Observer,
	escalation core.EscalationConfig,
	summaryLimit int,
) *Recorder {
	if summaryLimit <= 0 {
		summaryLimit = core.ErrorSummaryLimit
	}
	return &Recorder{
		store:        store,
		audit:        audit,
		observer:     observer,
		escalation:   escalation,
		summaryLimit: summaryLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) RecordDeliveryOutcome(
	ctx context.Context,
	subscriptionID string,
	outcome core.DeliveryOutcome,
	details DeliveryDetails,
) {
	if r == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			r.observer.Error(ctx, "webhooks: record delivery outcome panic", map[string]any{
				"subscription_id": subscriptionID,
				"outcome":         string(outcome),
				"error":           fmt.Sprint(recovered),
			})
		}
	}()

	now := r.now()
	errText := ""
	if details.Err != nil {
		errText = core.TruncateSummary(details.Err.Error(), r.summaryLimit)
	}

	tags := core.DeliveryTags(details.Event, outcome)
	r.observer.Count(ctx, core.MetricDeliveryTotal, 1, tags)
	r.observer.Observe(ctx, core.MetricDeliveryDuration, float64(details.Duration.Milliseconds()), tags)

	var (
		updated    core.Subscription
		updatedOK  bool
		patchErr   error
		hasPatch   bool
		statsPatch core.StatisticsPatch
	)
	switch outcome {
	case core.DeliveryOutcomeSuccess:
		hasPatch = true
		statsPatch = core.StatisticsPatch{SentDelta: 1, SuccessDelta: 1, LastSuccessAt: &now}
	case core.DeliveryOutcomeFailed:
		hasPatch = true
		statsPatch = core.StatisticsPatch{SentDelta: 1, FailedDelta: 1, LastFailureAt: &now, LastErrorSummary: &errText}
	}
	if hasPatch && r.store != nil {
		updated, patchErr = r.store.UpdateStatistics(ctx, subscriptionID, statsPatch)
		if patchErr != nil {
			r.observer.Error(ctx, "webhooks: update subscription statistics failed", map[string]any{
				"subscription_id": subscriptionID,
				"outcome":         string(outcome),
				"error":           patchErr.Error(),
			})
		} else {
			updatedOK = true
		}
	}

	if r.audit != nil {
		entry := core.AuditEntry{
			SubscriptionID: subscriptionID,
			JobID:          details.JobID,
			Event:          details.Event,
			Outcome:        outcome,
			Attempt:        details.Attempt,
			MaxAttempts:    details.MaxAttempts,
			StatusCode:     details.StatusCode,
			DurationMS:     details.Duration.Milliseconds(),
			Error:          errText,
			Message:        auditMessage(outcome, details),
			NextAttemptAt:  details.NextAttemptAt,
			Metadata:       core.RedactSensitiveMap(details.Metadata),
			CreatedAt:      now,
		}
		if err := r.audit.Record(ctx, entry); err != nil {
			r.observer.Error(ctx, "webhooks: write audit entry failed", map[string]any{
				"subscription_id": subscriptionID,
				"outcome":         string(outcome),
				"error":           err.Error(),
			})
		}
	}

	if outcome == core.DeliveryOutcomeFailed && updatedOK {
		r.escalate(ctx, updated)
	}
}

// ShouldDeactivate reports whether stats crossed the auto-deactivation thresholds.
func ShouldDeactivate(stats core.Statistics, escalation core.EscalationConfig) bool {
	return stats.TotalSent > escalation.MinSent && stats.FailureRatio() > escalation.FailureRatio
}

func (r *Recorder) escalate(ctx context.Context, sub core.Subscription) {
	if sub.Status == core.SubscriptionStatusFailed || !ShouldDeactivate(sub.Statistics, r.escalation) {
		return
	}
	reason := fmt.Sprintf(
		"auto-deactivated: %d of %d deliveries failed (%.0f%%)",
		sub.Statistics.TotalFailed,
		sub.Statistics.TotalSent,
		sub.Statistics.FailureRatio()*100,
	)
	if err := r.store.Deactivate(ctx, sub.ID, reason); err != nil {
		r.observer.Error(ctx, "webhooks: auto-deactivation failed", map[string]any{
			"subscription_id": sub.ID,
			"error":           err.Error(),
		})
		return
	}
	r.observer.Count(ctx, core.MetricSubscriptionDeactivated, 1, nil)
	r.observer.Warn(ctx, "webhooks: subscription auto-deactivated", map[string]any{
		"subscription_id": sub.ID,
		"total_sent":      sub.Statistics.TotalSent,
		"total_failed":    sub.Statistics.TotalFailed,
	})
}

func auditMessage(outcome core.DeliveryOutcome, details DeliveryDetails) string {
	attempt := fmt.Sprintf("attempt %d of %d", details.Attempt, details.MaxAttempts)
	switch outcome {
	case core.DeliveryOutcomeSuccess:
		return fmt.Sprintf("delivered on %s (status %d)", attempt, details.StatusCode)
	case core.DeliveryOutcomeRetry:
		msg := attempt + " failed"
		if details.RetryDelay > 0 {
			msg += fmt.Sprintf(", retrying in %s", details.RetryDelay)
		}
		return msg
	default:
		if strings.TrimSpace(fmt.Sprint(details.Metadata["reason"])) == "subscription_missing" {
			return attempt + " abandoned, subscription not found"
		}
		return attempt + " failed, giving up"
	}
}
