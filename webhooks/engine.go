package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oee-hooks/adapters/gologger"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/transport"
)

type engineBuilder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	sender         core.Sender
	audit          core.AuditSink
	scheduler      Scheduler
	intake         func(*Dispatcher) Intake
	now            func() time.Time
}

type Option func(*engineBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *engineBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *engineBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *engineBuilder) {
		b.metrics = recorder
	}
}

// WithSender replaces the default HTTP sender.
func WithSender(sender core.Sender) Option {
	return func(b *engineBuilder) {
		b.sender = sender
	}
}

func WithAuditSink(sink core.AuditSink) Option {
	return func(b *engineBuilder) {
		b.audit = sink
	}
}

// WithScheduler replaces the timer used for retry re-queues.
func WithScheduler(scheduler Scheduler) Option {
	return func(b *engineBuilder) {
		b.scheduler = scheduler
	}
}

// WithIntake routes evaluator output through an intake built around the
// dispatcher, e.g. a durable job queue that pumps back into it.
func WithIntake(build func(*Dispatcher) Intake) Option {
	return func(b *engineBuilder) {
		b.intake = build
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *engineBuilder) {
		b.now = now
	}
}

// Engine wires the evaluator, dispatcher and recorder around one store.
type Engine struct {
	config     core.Config
	store      core.SubscriptionStore
	observer   *core.Observer
	evaluator  *Evaluator
	dispatcher *Dispatcher
	recorder   *Recorder
}

func NewEngine(cfg core.Config, store core.SubscriptionStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: subscription store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	builder := engineBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	name := strings.TrimSpace(cfg.ServiceName)
	logger := gologger.Named(name, builder.loggerProvider, builder.logger)
	if builder.metrics == nil {
		builder.metrics = core.NopMetricsRecorder{}
	}
	if builder.sender == nil {
		sender := transport.NewHTTPSender(nil)
		sender.MaxResponseBodyBytes = cfg.Delivery.MaxResponseBodyBytes
		builder.sender = sender
	}
	if builder.audit == nil {
		if sink, ok := store.(core.AuditSink); ok {
			builder.audit = sink
		}
	}
	observer := core.NewObserver(logger, builder.metrics, "hooks")

	recorder := NewRecorder(store, builder.audit, observer, cfg.Escalation, cfg.Delivery.ErrorSummaryLimit)
	dispatcher, err := NewDispatcher(store, builder.sender, recorder, observer, DispatcherConfig{
		MaxConcurrent:  cfg.Delivery.MaxConcurrent,
		DefaultTimeout: cfg.Delivery.DefaultTimeout,
		Source:         cfg.Source,
		DefaultRetry:   cfg.RetryPolicy(),
		Breaker:        cfg.Breaker,
	})
	if err != nil {
		return nil, err
	}
	if builder.scheduler != nil {
		dispatcher.scheduler = builder.scheduler
	}
	if builder.now != nil {
		dispatcher.now = builder.now
		recorder.now = builder.now
	}

	var intake Intake = dispatcher
	if builder.intake != nil {
		if custom := builder.intake(dispatcher); custom != nil {
			intake = custom
		}
	}
	evaluator := NewEvaluator(store, intake, observer, cfg.Source, cfg.Version)
	if builder.now != nil {
		evaluator.now = builder.now
	}

	return &Engine{
		config:     cfg,
		store:      store,
		observer:   observer,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		recorder:   recorder,
	}, nil
}

// Trigger is the entry point for domain code. It never fails and never
// blocks on delivery.
func (e *Engine) Trigger(ctx context.Context, event string, data any, options map[string]any) TriggerResult {
	if e == nil {
		return TriggerResult{Event: event}
	}
	return e.evaluator.Trigger(ctx, event, data, options)
}

func (e *Engine) TriggerEvent(ctx context.Context, event core.Event, options map[string]any) TriggerResult {
	return e.Trigger(ctx, event.Name, event.Data, options)
}

// Enqueue hands a prepared job straight to the dispatcher.
func (e *Engine) Enqueue(ctx context.Context, job Job) error {
	if e == nil {
		return core.ErrEngineClosed
	}
	return e.dispatcher.Enqueue(ctx, job)
}

func (e *Engine) Snapshot() Snapshot {
	if e == nil {
		return Snapshot{}
	}
	return e.dispatcher.Snapshot()
}

// Reactivate returns a failed subscription to active and clears its breaker.
func (e *Engine) Reactivate(ctx context.Context, id string) (core.Subscription, error) {
	if e == nil {
		return core.Subscription{}, core.ErrEngineClosed
	}
	registry, ok := e.store.(interface {
		Reactivate(ctx context.Context, id string) (core.Subscription, error)
	})
	if !ok {
		return core.Subscription{}, core.MapError(fmt.Errorf("webhooks: store does not support reactivation"))
	}
	sub, err := registry.Reactivate(ctx, id)
	if err != nil {
		return core.Subscription{}, core.MapError(err)
	}
	e.dispatcher.ResetBreaker(sub.ID)
	e.observer.Info(ctx, "webhooks: subscription reactivated", map[string]any{"subscription_id": sub.ID})
	return sub, nil
}

func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.dispatcher.Close(ctx)
}

func (e *Engine) Config() core.Config {
	if e == nil {
		return core.Config{}
	}
	return e.config
}

func (e *Engine) Dispatcher() *Dispatcher {
	if e == nil {
		return nil
	}
	return e.dispatcher
}

func (e *Engine) Logger() core.Logger {
	if e == nil {
		return glog.Nop()
	}
	return e.observer.Logger()
}
