package hooks

import (
	"context"
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-oee-hooks/adapters/gocommand"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

// Facade bundles an engine with the registry behind it and the go-command
// handlers that expose both.
type Facade struct {
	engine   *webhooks.Engine
	registry core.SubscriptionRegistry
	audit    core.AuditReader
	handlers gocommand.Handlers
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	audit core.AuditReader
}

func WithAuditReader(reader core.AuditReader) FacadeOption {
	return func(options *facadeOptions) {
		options.audit = reader
	}
}

func NewFacade(engine *webhooks.Engine, registry core.SubscriptionRegistry, opts ...FacadeOption) (*Facade, error) {
	if engine == nil {
		return nil, fmt.Errorf("hooks: delivery engine is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("hooks: subscription registry is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	audit := cfg.audit
	if audit == nil {
		if reader, ok := registry.(core.AuditReader); ok {
			audit = reader
		}
	}
	return &Facade{
		engine:   engine,
		registry: registry,
		audit:    audit,
		handlers: gocommand.NewHandlers(engine, registry, audit),
	}, nil
}

func (f *Facade) Engine() *webhooks.Engine {
	if f == nil {
		return nil
	}
	return f.engine
}

func (f *Facade) Registry() core.SubscriptionRegistry {
	if f == nil {
		return nil
	}
	return f.registry
}

func (f *Facade) AuditReader() core.AuditReader {
	if f == nil {
		return nil
	}
	return f.audit
}

func (f *Facade) Handlers() gocommand.Handlers {
	if f == nil {
		return gocommand.Handlers{}
	}
	return f.handlers
}

// Register subscribes the facade handlers on the go-command dispatcher.
func (f *Facade) Register(
	adapter *gocommand.RegistryAdapter,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("hooks: facade is nil")
	}
	return gocommand.RegisterHandlers(adapter, f.handlers, runnerOpts...)
}

func (f *Facade) Trigger(ctx context.Context, event string, data any, options map[string]any) TriggerResult {
	if f == nil {
		return TriggerResult{Event: event}
	}
	return f.engine.Trigger(ctx, event, data, options)
}

func (f *Facade) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (Subscription, error) {
	if f == nil {
		return Subscription{}, fmt.Errorf("hooks: facade is nil")
	}
	sub, err := f.registry.Create(ctx, in)
	if err != nil {
		return Subscription{}, core.MapError(err)
	}
	return sub, nil
}

func (f *Facade) Reactivate(ctx context.Context, id string) (Subscription, error) {
	if f == nil {
		return Subscription{}, fmt.Errorf("hooks: facade is nil")
	}
	return f.engine.Reactivate(ctx, id)
}

func (f *Facade) Snapshot() Snapshot {
	if f == nil {
		return Snapshot{}
	}
	return f.engine.Snapshot()
}

func (f *Facade) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f.engine.Close(ctx)
}
