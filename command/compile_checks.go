package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

var (
	_ gocmd.Commander[TriggerEventMessage]           = (*TriggerEventCommand)(nil)
	_ gocmd.Commander[CreateSubscriptionMessage]     = (*CreateSubscriptionCommand)(nil)
	_ gocmd.Commander[ReactivateSubscriptionMessage] = (*ReactivateSubscriptionCommand)(nil)
	_ gocmd.Commander[DeactivateSubscriptionMessage] = (*DeactivateSubscriptionCommand)(nil)

	_ Triggerer               = (*webhooks.Engine)(nil)
	_ SubscriptionReactivator = (*webhooks.Engine)(nil)
)
