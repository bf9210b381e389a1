package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

var (
	_ gocmd.Querier[DeliverySnapshotMessage, webhooks.Snapshot] = (*DeliverySnapshotQuery)(nil)
	_ gocmd.Querier[ListAuditMessage, core.AuditPage]           = (*ListAuditQuery)(nil)
	_ gocmd.Querier[GetSubscriptionMessage, core.Subscription]  = (*GetSubscriptionQuery)(nil)

	_ SnapshotReader = (*webhooks.Engine)(nil)
	_ SnapshotReader = (*webhooks.Dispatcher)(nil)
)
