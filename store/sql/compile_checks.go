package sqlstore

import "github.com/goliatone/go-oee-hooks/core"

var (
	_ core.SubscriptionRegistry = (*SubscriptionStore)(nil)
	_ core.SubscriptionRegistry = (*CachedSubscriptionStore)(nil)
	_ core.AuditStore           = (*AuditStore)(nil)
)
