package query

import (
	"strings"

	"github.com/goliatone/go-oee-hooks/core"
)

const (
	TypeDeliverySnapshot = "oee-hooks.query.delivery.snapshot"
	TypeListAudit        = "oee-hooks.query.audit.list"
	TypeGetSubscription  = "oee-hooks.query.subscription.get"
)

type DeliverySnapshotMessage struct{}

func (DeliverySnapshotMessage) Type() string { return TypeDeliverySnapshot }

type ListAuditMessage struct {
	Filter core.AuditFilter
}

func (ListAuditMessage) Type() string { return TypeListAudit }

func (m ListAuditMessage) Validate() error {
	if m.Filter.Page < 0 {
		return core.FieldError("query", "page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return core.FieldError("query", "per_page", "per_page must be >= 0")
	}
	switch m.Filter.Outcome {
	case "", core.DeliveryOutcomeSuccess, core.DeliveryOutcomeRetry, core.DeliveryOutcomeFailed:
	default:
		return core.FieldError("query", "outcome", "unknown outcome "+string(m.Filter.Outcome))
	}
	return nil
}

type GetSubscriptionMessage struct {
	SubscriptionID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return core.FieldError("query", "subscription_id", "subscription id is required")
	}
	return nil
}
