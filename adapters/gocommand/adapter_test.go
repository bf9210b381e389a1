package gocommand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	hookscommand "github.com/goliatone/go-oee-hooks/command"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/query"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

type okMessage struct{}

func (okMessage) Type() string { return "oee-hooks.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "oee-hooks.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type queueMessage struct{}

func (queueMessage) Type() string { return "oee-hooks.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(hookscommand.TriggerEventMessage{Event: core.EventShiftStarted}); err != nil {
		t.Fatalf("expected trigger message to satisfy contract, got %v", err)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if !adapter.HasResolver("queue") {
		t.Fatalf("expected queue resolver to be registered")
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("oee-hooks.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterHandlers_DispatchAndQueryThroughEngine(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemorySubscriptionStore()
	audit := core.NewMemoryAuditStore()

	delivered := make(chan core.DeliveryRequest, 4)
	engine, err := webhooks.NewEngine(core.DefaultConfig(), store,
		webhooks.WithAuditSink(audit),
		webhooks.WithSender(senderFunc(func(_ context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
			delivered <- req
			return core.DeliveryResponse{StatusCode: 200}, nil
		})),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = engine.Close(ctx) }()

	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterHandlers(adapter, NewHandlers(engine, store, audit))
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer Unsubscribe(subs)
	if len(subs) != 7 {
		t.Fatalf("expected 7 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	created := command.NewResult[core.Subscription]()
	if err := Dispatch(command.ContextWithResult(ctx, created), hookscommand.CreateSubscriptionMessage{
		Input: core.CreateSubscriptionInput{
			Name:   "line-3",
			URL:    "https://subscriber.example.com/hooks",
			Events: []string{core.EventMaintenanceScheduled},
		},
	}); err != nil {
		t.Fatalf("dispatch create: %v", err)
	}
	sub, ok := created.Load()
	if !ok || sub.ID == "" {
		t.Fatalf("expected created subscription result")
	}

	triggered := command.NewResult[webhooks.TriggerResult]()
	if err := Dispatch(command.ContextWithResult(ctx, triggered), hookscommand.TriggerEventMessage{
		Event: core.EventMaintenanceScheduled,
		Data:  map[string]any{"machine_id": "m-7"},
	}); err != nil {
		t.Fatalf("dispatch trigger: %v", err)
	}
	result, ok := triggered.Load()
	if !ok || result.Enqueued != 1 {
		t.Fatalf("expected one enqueued delivery, got %#v", result)
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected delivery to reach sender")
	}

	got, err := Query[query.GetSubscriptionMessage, core.Subscription](ctx, query.GetSubscriptionMessage{SubscriptionID: sub.ID})
	if err != nil {
		t.Fatalf("query subscription: %v", err)
	}
	if got.Secret != "" {
		t.Fatalf("expected query to strip the secret")
	}

	deadline := time.After(2 * time.Second)
	for {
		page, err := Query[query.ListAuditMessage, core.AuditPage](ctx, query.ListAuditMessage{
			Filter: core.AuditFilter{SubscriptionID: sub.ID},
		})
		if err != nil {
			t.Fatalf("query audit: %v", err)
		}
		if page.Total == 1 {
			if page.Items[0].Outcome != core.DeliveryOutcomeSuccess {
				t.Fatalf("expected success audit entry, got %q", page.Items[0].Outcome)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected one audit entry, got %d", page.Total)
		case <-time.After(5 * time.Millisecond):
		}
	}

	snapshot, err := Query[query.DeliverySnapshotMessage, webhooks.Snapshot](ctx, query.DeliverySnapshotMessage{})
	if err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if snapshot.Dispatched != 1 {
		t.Fatalf("expected one dispatched delivery, got %d", snapshot.Dispatched)
	}
}

func TestRegisterHandlers_RequiresRegistry(t *testing.T) {
	if _, err := RegisterHandlers(nil, Handlers{}); err == nil {
		t.Fatalf("expected missing registry error")
	}
	handlers := NewHandlers(nil, nil, nil)
	if handlers.TriggerEvent != nil || handlers.ListAudit != nil {
		t.Fatalf("expected nil dependencies to leave handlers unset")
	}
}

type senderFunc func(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error)

func (f senderFunc) Send(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
	return f(ctx, req)
}
