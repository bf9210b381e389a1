package webhooks

import (
	"testing"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

func TestBackoffDelaySequence(t *testing.T) {
	policy := core.RetryPolicy{MaxRetries: 3, InitialDelay: 1000 * time.Millisecond, BackoffMultiplier: 2}
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond, 4000 * time.Millisecond}
	for attempt, expected := range want {
		if got := BackoffDelay(policy, attempt); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, expected, got)
		}
	}
}

func TestBackoffDelayCapsOverflow(t *testing.T) {
	policy := core.RetryPolicy{InitialDelay: time.Hour, BackoffMultiplier: 10}
	if got := BackoffDelay(policy, 50); got != maxRetryDelay {
		t.Fatalf("expected cap %s, got %s", maxRetryDelay, got)
	}
}
