package webhooks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

type funcSender func(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error)

func (f funcSender) Send(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
	return f(ctx, req)
}

func statusSender(code int) funcSender {
	return func(context.Context, core.DeliveryRequest) (core.DeliveryResponse, error) {
		return core.DeliveryResponse{StatusCode: code}, nil
	}
}

type stubTimer struct{}

func (stubTimer) Stop() bool { return true }

// immediateScheduler records delays and fires each callback right away on
// its own goroutine.
type immediateScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *immediateScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	go fn()
	return stubTimer{}
}

func (s *immediateScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// manualScheduler holds callbacks until Fire is called.
// With expired set its timers behave as already fired: Stop reports false
// and the callback still runs on Fire.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
	expired bool
}

type manualTimer struct {
	stopped *bool
	expired bool
}

func (t manualTimer) Stop() bool {
	if t.expired {
		return false
	}
	*t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped := false
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, func() {
		if !stopped {
			fn()
		}
	})
	return manualTimer{stopped: &stopped, expired: s.expired}
}

func (s *manualScheduler) Fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

type testEnv struct {
	engine *Engine
	store  *core.MemorySubscriptionStore
	audit  *core.MemoryAuditStore
}

func newTestEnv(t *testing.T, cfg core.Config, sender core.Sender, opts ...Option) testEnv {
	t.Helper()
	store := core.NewMemorySubscriptionStore()
	audit := core.NewMemoryAuditStore()
	opts = append([]Option{WithSender(sender), WithAuditSink(audit)}, opts...)
	engine, err := NewEngine(cfg, store, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Close(ctx)
	})
	return testEnv{engine: engine, store: store, audit: audit}
}

func testSubscription(events ...string) core.Subscription {
	if len(events) == 0 {
		events = []string{core.EventMachineStatusChanged}
	}
	return core.Subscription{
		Name:        "test",
		URL:         "https://subscriber.example.com/hook",
		Secret:      "shared-secret",
		Events:      events,
		Status:      core.SubscriptionStatusActive,
		Timeout:     time.Second,
		RetryPolicy: core.RetryPolicy{MaxRetries: 0, InitialDelay: time.Millisecond, BackoffMultiplier: 2},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func countOutcome(entries []core.AuditEntry, outcome core.DeliveryOutcome) int {
	count := 0
	for _, entry := range entries {
		if entry.Outcome == outcome {
			count++
		}
	}
	return count
}
