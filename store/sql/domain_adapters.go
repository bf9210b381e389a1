package sqlstore

import (
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

func newSubscriptionRecord(sub core.Subscription, encryptedSecret []byte) *subscriptionRecord {
	return &subscriptionRecord{
		ID:                sub.ID,
		Name:              sub.Name,
		Description:       sub.Description,
		URL:               sub.URL,
		TimeoutMS:         sub.Timeout.Milliseconds(),
		Headers:           copyStringMap(sub.Headers),
		EncryptedSecret:   append([]byte(nil), encryptedSecret...),
		Events:            append([]string{}, sub.Events...),
		Filter:            sub.Filter,
		Status:            string(sub.Status),
		StatusNote:        sub.StatusNote,
		MaxRetries:        sub.RetryPolicy.MaxRetries,
		InitialDelayMS:    sub.RetryPolicy.InitialDelay.Milliseconds(),
		BackoffMultiplier: sub.RetryPolicy.BackoffMultiplier,
		RateLimit:         sub.RateLimit,
		TotalSent:         sub.Statistics.TotalSent,
		TotalSuccess:      sub.Statistics.TotalSuccess,
		TotalFailed:       sub.Statistics.TotalFailed,
		LastSuccessAt:     cloneTimePointer(sub.Statistics.LastSuccessAt),
		LastFailureAt:     cloneTimePointer(sub.Statistics.LastFailureAt),
		LastErrorSummary:  sub.Statistics.LastErrorSummary,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}

// toDomain maps the record back; secret is the already decrypted value.
func (r *subscriptionRecord) toDomain(secret string) core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	return core.Subscription{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		Timeout:     time.Duration(r.TimeoutMS) * time.Millisecond,
		Headers:     copyStringMap(r.Headers),
		Secret:      secret,
		Events:      append([]string{}, r.Events...),
		Filter:      r.Filter,
		Status:      core.SubscriptionStatus(r.Status),
		StatusNote:  r.StatusNote,
		RetryPolicy: core.RetryPolicy{
			MaxRetries:        r.MaxRetries,
			InitialDelay:      time.Duration(r.InitialDelayMS) * time.Millisecond,
			BackoffMultiplier: r.BackoffMultiplier,
		},
		RateLimit: r.RateLimit,
		Statistics: core.Statistics{
			TotalSent:        r.TotalSent,
			TotalSuccess:     r.TotalSuccess,
			TotalFailed:      r.TotalFailed,
			LastSuccessAt:    cloneTimePointer(r.LastSuccessAt),
			LastFailureAt:    cloneTimePointer(r.LastFailureAt),
			LastErrorSummary: r.LastErrorSummary,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newAuditEntryRecord(entry core.AuditEntry) *auditEntryRecord {
	return &auditEntryRecord{
		ID:             entry.ID,
		SubscriptionID: entry.SubscriptionID,
		JobID:          entry.JobID,
		Event:          entry.Event,
		Outcome:        string(entry.Outcome),
		Attempt:        entry.Attempt,
		MaxAttempts:    entry.MaxAttempts,
		StatusCode:     entry.StatusCode,
		DurationMS:     entry.DurationMS,
		Error:          entry.Error,
		Message:        entry.Message,
		NextAttemptAt:  cloneTimePointer(entry.NextAttemptAt),
		Metadata:       core.RedactSensitiveMap(entry.Metadata),
		CreatedAt:      entry.CreatedAt.UTC(),
	}
}

func (r *auditEntryRecord) toDomain() core.AuditEntry {
	if r == nil {
		return core.AuditEntry{}
	}
	return core.AuditEntry{
		ID:             r.ID,
		SubscriptionID: r.SubscriptionID,
		JobID:          r.JobID,
		Event:          r.Event,
		Outcome:        core.DeliveryOutcome(r.Outcome),
		Attempt:        r.Attempt,
		MaxAttempts:    r.MaxAttempts,
		StatusCode:     r.StatusCode,
		DurationMS:     r.DurationMS,
		Error:          r.Error,
		Message:        r.Message,
		NextAttemptAt:  cloneTimePointer(r.NextAttemptAt),
		Metadata:       copyAnyMap(r.Metadata),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
