package adapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oee-hooks/adapters/gocommand"
	"github.com/goliatone/go-oee-hooks/adapters/gojob"
	"github.com/goliatone/go-oee-hooks/adapters/gologger"
	hookscommand "github.com/goliatone/go-oee-hooks/command"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

// A trigger dispatched through go-command is forwarded to a go-job queue,
// pumped back into the dispatcher and delivered.
func TestRuntimeCompatibility_CommandToQueueToDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}
	_, resolved, jobProvider, jobLogger := gologger.ResolveForJob("", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	store := core.NewMemorySubscriptionStore()
	if _, err := store.Create(ctx, core.CreateSubscriptionInput{
		Name:   "durable",
		URL:    "https://subscriber.example.com/hooks",
		Events: []string{core.EventProductionCompleted},
	}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	backend := newMemoryQueue()
	delivered := make(chan core.DeliveryRequest, 1)
	engine, err := webhooks.NewEngine(core.DefaultConfig(), store,
		webhooks.WithLoggerProvider(provider),
		webhooks.WithIntake(func(*webhooks.Dispatcher) webhooks.Intake { return gojob.NewForwarder(backend) }),
		webhooks.WithSender(senderFunc(func(_ context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
			delivered <- req
			return core.DeliveryResponse{StatusCode: 202}, nil
		})),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer func() { _ = engine.Close(context.Background()) }()

	pump := gojob.NewPump(backend, engine.Dispatcher(), gojob.PumpConfig{IdleDelay: time.Millisecond}, resolved)
	go func() { _ = pump.Run(ctx) }()

	queueRegistry := jobqueuecommand.NewRegistry()
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	subs, err := gocommand.RegisterHandlers(adapter, gocommand.Handlers{
		TriggerEvent: hookscommand.NewTriggerEventCommand(engine),
	})
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer gocommand.Unsubscribe(subs)
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get(hookscommand.TypeTriggerEvent); !ok {
		t.Fatalf("expected trigger command mirrored into go-job queue registry")
	}

	if err := gocommand.Dispatch(ctx, hookscommand.TriggerEventMessage{
		Event: core.EventProductionCompleted,
		Data:  map[string]any{"order_id": "po-1"},
	}); err != nil {
		t.Fatalf("dispatch trigger: %v", err)
	}

	select {
	case req := <-delivered:
		if req.Headers[webhooks.HeaderEvent] != core.EventProductionCompleted {
			t.Fatalf("expected event header, got %#v", req.Headers)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected queued delivery to reach the sender")
	}
	deadline := time.After(2 * time.Second)
	for backend.acked() != 1 {
		select {
		case <-deadline:
			t.Fatalf("expected queue delivery to be acked, got %d", backend.acked())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type senderFunc func(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error)

func (f senderFunc) Send(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
	return f(ctx, req)
}

type memoryQueue struct {
	ch chan *job.ExecutionMessage

	mu    sync.Mutex
	acks  int
	nacks []queue.NackOptions
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{ch: make(chan *job.ExecutionMessage, 16)}
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.ch <- msg
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-q.ch:
		return &memoryDelivery{queue: q, msg: msg}, nil
	}
}

func (q *memoryQueue) acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acks
}

type memoryDelivery struct {
	queue *memoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	d.queue.acks++
	d.queue.mu.Unlock()
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.queue.mu.Lock()
	d.queue.nacks = append(d.queue.nacks, opts)
	d.queue.mu.Unlock()
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
