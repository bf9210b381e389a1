package query

import (
	"context"

	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

// SnapshotReader is satisfied by *webhooks.Engine and *webhooks.Dispatcher.
type SnapshotReader interface {
	Snapshot() webhooks.Snapshot
}

type SubscriptionReader interface {
	Get(ctx context.Context, id string) (core.Subscription, error)
}

type DeliverySnapshotQuery struct {
	reader SnapshotReader
}

func NewDeliverySnapshotQuery(reader SnapshotReader) *DeliverySnapshotQuery {
	return &DeliverySnapshotQuery{reader: reader}
}

func (q *DeliverySnapshotQuery) Query(_ context.Context, _ DeliverySnapshotMessage) (webhooks.Snapshot, error) {
	if q == nil || q.reader == nil {
		return webhooks.Snapshot{}, core.DependencyError("query: snapshot reader is required")
	}
	return q.reader.Snapshot(), nil
}

type ListAuditQuery struct {
	reader core.AuditReader
}

func NewListAuditQuery(reader core.AuditReader) *ListAuditQuery {
	return &ListAuditQuery{reader: reader}
}

func (q *ListAuditQuery) Query(ctx context.Context, msg ListAuditMessage) (core.AuditPage, error) {
	if q == nil || q.reader == nil {
		return core.AuditPage{}, core.DependencyError("query: audit reader is required")
	}
	page, err := q.reader.List(ctx, msg.Filter)
	if err != nil {
		return core.AuditPage{}, core.MapError(err)
	}
	return page, nil
}

// GetSubscriptionQuery never returns the signing secret; use RevealSecret
// on the registry for that.
type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (core.Subscription, error) {
	if q == nil || q.reader == nil {
		return core.Subscription{}, core.DependencyError("query: subscription reader is required")
	}
	sub, err := q.reader.Get(ctx, msg.SubscriptionID)
	if err != nil {
		return core.Subscription{}, core.MapError(err)
	}
	sub.Secret = ""
	return sub, nil
}
