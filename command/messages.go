package command

import (
	"strings"

	"github.com/goliatone/go-oee-hooks/core"
)

const (
	TypeTriggerEvent           = "oee-hooks.command.event.trigger"
	TypeCreateSubscription     = "oee-hooks.command.subscription.create"
	TypeReactivateSubscription = "oee-hooks.command.subscription.reactivate"
	TypeDeactivateSubscription = "oee-hooks.command.subscription.deactivate"
)

type TriggerEventMessage struct {
	Event   string
	Data    any
	Options map[string]any
}

func (TriggerEventMessage) Type() string { return TypeTriggerEvent }

func (m TriggerEventMessage) Validate() error {
	event := strings.TrimSpace(m.Event)
	if event == "" {
		return core.FieldError("command", "event", "event is required")
	}
	if !core.KnownEvent(event) {
		return core.FieldError("command", "event", "unknown event "+event)
	}
	return nil
}

type CreateSubscriptionMessage struct {
	Input core.CreateSubscriptionInput
}

func (CreateSubscriptionMessage) Type() string { return TypeCreateSubscription }

func (m CreateSubscriptionMessage) Validate() error {
	return core.ValidateSubscriptionInput(core.NormalizeSubscriptionInput(m.Input))
}

type ReactivateSubscriptionMessage struct {
	SubscriptionID string
}

func (ReactivateSubscriptionMessage) Type() string { return TypeReactivateSubscription }

func (m ReactivateSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return core.FieldError("command", "subscription_id", "subscription id is required")
	}
	return nil
}

type DeactivateSubscriptionMessage struct {
	SubscriptionID string
	Reason         string
}

func (DeactivateSubscriptionMessage) Type() string { return TypeDeactivateSubscription }

func (m DeactivateSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return core.FieldError("command", "subscription_id", "subscription id is required")
	}
	if strings.TrimSpace(m.Reason) == "" {
		return core.BadInputError("command: deactivation reason is required")
	}
	return nil
}
