package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

// Triggerer is satisfied by *webhooks.Engine.
type Triggerer interface {
	Trigger(ctx context.Context, event string, data any, options map[string]any) webhooks.TriggerResult
}

type SubscriptionCreator interface {
	Create(ctx context.Context, in core.CreateSubscriptionInput) (core.Subscription, error)
}

type SubscriptionReactivator interface {
	Reactivate(ctx context.Context, id string) (core.Subscription, error)
}

type SubscriptionDeactivator interface {
	Deactivate(ctx context.Context, id string, reason string) error
}

// TriggerEventCommand stores the webhooks.TriggerResult in the command
// result collector when one is attached to ctx.
type TriggerEventCommand struct {
	engine Triggerer
}

func NewTriggerEventCommand(engine Triggerer) *TriggerEventCommand {
	return &TriggerEventCommand{engine: engine}
}

func (c *TriggerEventCommand) Execute(ctx context.Context, msg TriggerEventMessage) error {
	if c == nil || c.engine == nil {
		return core.DependencyError("command: delivery engine is required")
	}
	out := c.engine.Trigger(ctx, msg.Event, msg.Data, msg.Options)
	storeResult(ctx, out)
	return nil
}

// CreateSubscriptionCommand stores the created subscription, including the
// generated secret, in the result collector.
type CreateSubscriptionCommand struct {
	registry SubscriptionCreator
}

func NewCreateSubscriptionCommand(registry SubscriptionCreator) *CreateSubscriptionCommand {
	return &CreateSubscriptionCommand{registry: registry}
}

func (c *CreateSubscriptionCommand) Execute(ctx context.Context, msg CreateSubscriptionMessage) error {
	if c == nil || c.registry == nil {
		return core.DependencyError("command: subscription registry is required")
	}
	out, err := c.registry.Create(ctx, msg.Input)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

type ReactivateSubscriptionCommand struct {
	reactivator SubscriptionReactivator
}

func NewReactivateSubscriptionCommand(reactivator SubscriptionReactivator) *ReactivateSubscriptionCommand {
	return &ReactivateSubscriptionCommand{reactivator: reactivator}
}

func (c *ReactivateSubscriptionCommand) Execute(ctx context.Context, msg ReactivateSubscriptionMessage) error {
	if c == nil || c.reactivator == nil {
		return core.DependencyError("command: subscription reactivator is required")
	}
	out, err := c.reactivator.Reactivate(ctx, msg.SubscriptionID)
	if err != nil {
		return core.MapError(err)
	}
	out.Secret = ""
	storeResult(ctx, out)
	return nil
}

type DeactivateSubscriptionCommand struct {
	deactivator SubscriptionDeactivator
}

func NewDeactivateSubscriptionCommand(deactivator SubscriptionDeactivator) *DeactivateSubscriptionCommand {
	return &DeactivateSubscriptionCommand{deactivator: deactivator}
}

func (c *DeactivateSubscriptionCommand) Execute(ctx context.Context, msg DeactivateSubscriptionMessage) error {
	if c == nil || c.deactivator == nil {
		return core.DependencyError("command: subscription deactivator is required")
	}
	if err := c.deactivator.Deactivate(ctx, msg.SubscriptionID, msg.Reason); err != nil {
		return core.MapError(err)
	}
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
