package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ SubscriptionRegistry = (*MemorySubscriptionStore)(nil)
	_ AuditStore           = (*MemoryAuditStore)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
