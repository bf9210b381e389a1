package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	hookscommand "github.com/goliatone/go-oee-hooks/command"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/query"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so the trigger command can also run from a worker.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// SubscribeQuery only subscribes: queries are never mirrored into a queue.
func SubscribeQuery[T any, R any](
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...), nil
}

// Handlers holds the delivery engine command and query handlers. Nil entries
// are skipped on registration.
type Handlers struct {
	TriggerEvent           *hookscommand.TriggerEventCommand
	CreateSubscription     *hookscommand.CreateSubscriptionCommand
	ReactivateSubscription *hookscommand.ReactivateSubscriptionCommand
	DeactivateSubscription *hookscommand.DeactivateSubscriptionCommand

	DeliverySnapshot *query.DeliverySnapshotQuery
	ListAudit        *query.ListAuditQuery
	GetSubscription  *query.GetSubscriptionQuery
}

// NewHandlers builds every handler around one engine. registry and audit may
// be nil, which leaves the handlers that need them unset.
func NewHandlers(engine *webhooks.Engine, registry core.SubscriptionRegistry, audit core.AuditReader) Handlers {
	out := Handlers{}
	if engine != nil {
		out.TriggerEvent = hookscommand.NewTriggerEventCommand(engine)
		out.ReactivateSubscription = hookscommand.NewReactivateSubscriptionCommand(engine)
		out.DeliverySnapshot = query.NewDeliverySnapshotQuery(engine)
	}
	if registry != nil {
		out.CreateSubscription = hookscommand.NewCreateSubscriptionCommand(registry)
		out.DeactivateSubscription = hookscommand.NewDeactivateSubscriptionCommand(registry)
		out.GetSubscription = query.NewGetSubscriptionQuery(registry)
		if out.ReactivateSubscription == nil {
			out.ReactivateSubscription = hookscommand.NewReactivateSubscriptionCommand(registry)
		}
	}
	if audit != nil {
		out.ListAudit = query.NewListAuditQuery(audit)
	}
	return out
}

// RegisterHandlers registers and subscribes every non-nil handler. On error
// the subscriptions made so far are removed.
func RegisterHandlers(
	adapter *RegistryAdapter,
	handlers Handlers,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	var subs []commanddispatcher.Subscription
	keep := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		if sub != nil {
			subs = append(subs, sub)
		}
		return nil
	}

	var err error
	if handlers.TriggerEvent != nil {
		err = keep(RegisterAndSubscribe[hookscommand.TriggerEventMessage](adapter, handlers.TriggerEvent, runnerOpts...))
	}
	if err == nil && handlers.CreateSubscription != nil {
		err = keep(RegisterAndSubscribe[hookscommand.CreateSubscriptionMessage](adapter, handlers.CreateSubscription, runnerOpts...))
	}
	if err == nil && handlers.ReactivateSubscription != nil {
		err = keep(RegisterAndSubscribe[hookscommand.ReactivateSubscriptionMessage](adapter, handlers.ReactivateSubscription, runnerOpts...))
	}
	if err == nil && handlers.DeactivateSubscription != nil {
		err = keep(RegisterAndSubscribe[hookscommand.DeactivateSubscriptionMessage](adapter, handlers.DeactivateSubscription, runnerOpts...))
	}
	if err == nil && handlers.DeliverySnapshot != nil {
		err = keep(SubscribeQuery[query.DeliverySnapshotMessage, webhooks.Snapshot](handlers.DeliverySnapshot, runnerOpts...))
	}
	if err == nil && handlers.ListAudit != nil {
		err = keep(SubscribeQuery[query.ListAuditMessage, core.AuditPage](handlers.ListAudit, runnerOpts...))
	}
	if err == nil && handlers.GetSubscription != nil {
		err = keep(SubscribeQuery[query.GetSubscriptionMessage, core.Subscription](handlers.GetSubscription, runnerOpts...))
	}
	if err != nil {
		Unsubscribe(subs)
		return nil, err
	}
	return subs, nil
}

func Unsubscribe(subs []commanddispatcher.Subscription) {
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}
