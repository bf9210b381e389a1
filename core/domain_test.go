package core

import (
	"strings"
	"testing"
	"time"
)

func TestRetryPolicyMaxAttempts(t *testing.T) {
	if got := DefaultRetryPolicy().MaxAttempts(); got != 4 {
		t.Fatalf("expected 4 attempts for default policy, got %d", got)
	}
	if got := (RetryPolicy{MaxRetries: 0}).MaxAttempts(); got != 1 {
		t.Fatalf("expected single attempt, got %d", got)
	}
	if got := (RetryPolicy{MaxRetries: -3}).MaxAttempts(); got != 1 {
		t.Fatalf("expected negative retries to clamp to one attempt, got %d", got)
	}
}

func TestStatisticsPatchApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := strings.Repeat("x", ErrorSummaryLimit+40)
	stats := StatisticsPatch{
		SentDelta:        1,
		FailedDelta:      1,
		LastFailureAt:    &now,
		LastErrorSummary: &summary,
	}.Apply(Statistics{TotalSent: 4, TotalSuccess: 4})

	if stats.TotalSent != 5 || stats.TotalFailed != 1 || stats.TotalSuccess != 4 {
		t.Fatalf("unexpected counters: %#v", stats)
	}
	if stats.TotalSent != stats.TotalSuccess+stats.TotalFailed {
		t.Fatalf("expected sent = success + failed, got %#v", stats)
	}
	if stats.LastFailureAt == nil || !stats.LastFailureAt.Equal(now) {
		t.Fatalf("expected last failure timestamp, got %v", stats.LastFailureAt)
	}
	if len(stats.LastErrorSummary) != ErrorSummaryLimit {
		t.Fatalf("expected summary truncated to %d, got %d", ErrorSummaryLimit, len(stats.LastErrorSummary))
	}
	if stats.LastSuccessAt != nil {
		t.Fatalf("expected last success untouched")
	}
}

func TestStatisticsFailureRatio(t *testing.T) {
	if ratio := (Statistics{}).FailureRatio(); ratio != 0 {
		t.Fatalf("expected zero ratio without sends, got %v", ratio)
	}
	ratio := Statistics{TotalSent: 11, TotalFailed: 9}.FailureRatio()
	if ratio <= 0.8 {
		t.Fatalf("expected ratio above 0.8, got %v", ratio)
	}
}

func TestSubscriptionSubscribedTo(t *testing.T) {
	sub := Subscription{Events: []string{EventMachineStatusChanged, EventOEECalculated}}
	if !sub.SubscribedTo(" machine.status_changed ") {
		t.Fatalf("expected subscription to match trimmed event")
	}
	if sub.SubscribedTo(EventShiftEnded) {
		t.Fatalf("expected no match for unsubscribed event")
	}
}

func TestTruncateSummaryCountsRunes(t *testing.T) {
	got := TruncateSummary("ñandú-ñandú", 5)
	if got != "ñandú" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
