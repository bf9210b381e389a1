package webhooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

func TestQueue_FIFOAndClear(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Push(Job{ID: id})
	}
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", q.Len())
	}
	first, ok := q.Pop()
	if !ok || first.ID != "a" {
		t.Fatalf("expected FIFO pop of a, got %#v", first)
	}
	q.Push(Job{ID: "retry-a"})

	pending := q.Clear()
	if len(pending) != 3 || pending[0].ID != "b" || pending[2].ID != "retry-a" {
		t.Fatalf("unexpected pending order: %#v", pending)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue after clear")
	}
}

func TestEngine_TriggerEventUsesEventNameAndData(t *testing.T) {
	delivered := make(chan core.DeliveryRequest, 1)
	env := newTestEnv(t, core.DefaultConfig(), funcSender(func(_ context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
		delivered <- req
		return core.DeliveryResponse{StatusCode: 204}, nil
	}))
	env.store.Put(testSubscription(core.EventOEEThresholdCrossed))

	result := env.engine.TriggerEvent(context.Background(), core.Event{
		Name: core.EventOEEThresholdCrossed,
		Data: map[string]any{"machine_id": "m-4", "oee": 0.61},
	}, map[string]any{"threshold": 0.65})
	if result.Matched != 1 || len(result.JobIDs) != 1 {
		t.Fatalf("expected a single job, got %#v", result)
	}

	select {
	case req := <-delivered:
		if req.Headers[HeaderEvent] != core.EventOEEThresholdCrossed {
			t.Fatalf("expected event header, got %#v", req.Headers)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected delivery")
	}
}

func TestEngine_ReactivateRestoresLookup(t *testing.T) {
	env := newTestEnv(t, core.DefaultConfig(), statusSender(200))
	sub := env.store.Put(testSubscription())
	ctx := context.Background()

	if err := env.store.Deactivate(ctx, sub.ID, "failure ratio exceeded"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if result := env.engine.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{}, nil); result.Matched != 0 {
		t.Fatalf("expected failed subscription to be skipped, got %#v", result)
	}

	reactivated, err := env.engine.Reactivate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if !reactivated.Active() {
		t.Fatalf("expected active subscription, got %q", reactivated.Status)
	}
	if result := env.engine.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{}, nil); result.Matched != 1 {
		t.Fatalf("expected reactivated subscription to match, got %#v", result)
	}

	_, err = env.engine.Reactivate(ctx, "missing")
	mapped := core.MapError(err)
	if mapped == nil || mapped.TextCode != core.HooksErrorSubscriptionNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// Jobs queued before a deactivation are still delivered.
func TestEngine_DeactivatedAfterEnqueueStillDispatches(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cfg := core.DefaultConfig()
	cfg.Delivery.MaxConcurrent = 1
	env := newTestEnv(t, cfg, funcSender(func(context.Context, core.DeliveryRequest) (core.DeliveryResponse, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return core.DeliveryResponse{StatusCode: 200}, nil
	}))
	sub := env.store.Put(testSubscription())
	ctx := context.Background()

	env.engine.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{"n": 1}, nil)
	env.engine.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{"n": 2}, nil)
	waitFor(t, "second job queued behind the first", func() bool {
		return env.engine.Snapshot().QueueLength == 1
	})

	if err := env.store.Deactivate(ctx, sub.ID, "manual"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	close(release)

	waitFor(t, "both deliveries", func() bool {
		return countOutcome(env.audit.Entries(), core.DeliveryOutcomeSuccess) == 2
	})
	if calls.Load() != 2 {
		t.Fatalf("expected 2 sends, got %d", calls.Load())
	}
}

func TestEngine_SnapshotAndClose(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Delivery.MaxConcurrent = 7
	env := newTestEnv(t, cfg, statusSender(200))
	env.store.Put(testSubscription())
	ctx := context.Background()

	env.engine.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{}, nil)
	waitFor(t, "success", func() bool {
		return env.engine.Snapshot().Succeeded == 1
	})

	snapshot := env.engine.Snapshot()
	if snapshot.MaxConcurrent != 7 || snapshot.Dispatched != 1 || snapshot.PeakInFlight != 1 {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := env.engine.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !env.engine.Snapshot().Closed {
		t.Fatalf("expected closed snapshot")
	}
	if err := env.engine.Enqueue(ctx, NewJob("sub", core.EventMachineStatusChanged, "", nil, time.Now())); !errors.Is(err, core.ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Delivery.MaxConcurrent = -1
	if _, err := NewEngine(cfg, core.NewMemorySubscriptionStore()); err == nil {
		t.Fatalf("expected invalid config error")
	}
	if _, err := NewEngine(core.DefaultConfig(), nil); err == nil {
		t.Fatalf("expected missing store error")
	}
}
