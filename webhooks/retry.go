package webhooks

import (
	"math"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

const maxRetryDelay = 24 * time.Hour

type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d without holding a worker.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// BackoffDelay is the wait before the attempt that follows the zero-based
// attempt that just failed: initialDelay * multiplier^attempt.
func BackoffDelay(policy core.RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := policy.InitialDelay
	if initial <= 0 {
		initial = core.DefaultInitialDelay
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = core.DefaultBackoffMultiplier
	}
	next := float64(initial) * math.Pow(multiplier, float64(attempt))
	if math.IsInf(next, 0) || math.IsNaN(next) || next > float64(maxRetryDelay) {
		return maxRetryDelay
	}
	return time.Duration(next)
}

func effectivePolicy(policy core.RetryPolicy, fallback core.RetryPolicy) core.RetryPolicy {
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = fallback.InitialDelay
	}
	if policy.BackoffMultiplier <= 0 {
		policy.BackoffMultiplier = fallback.BackoffMultiplier
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return policy
}
