package query

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

func TestDeliverySnapshotQuery_QueryDelegates(t *testing.T) {
	reader := stubSnapshotReader{snapshot: webhooks.Snapshot{
		QueueLength:   3,
		InFlight:      2,
		MaxConcurrent: 10,
		Succeeded:     7,
	}}
	qry := NewDeliverySnapshotQuery(reader)
	result, err := qry.Query(context.Background(), DeliverySnapshotMessage{})
	if err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if result.QueueLength != 3 || result.InFlight != 2 || result.Succeeded != 7 {
		t.Fatalf("unexpected snapshot: %#v", result)
	}
}

func TestListAuditQuery_FiltersAndPaginates(t *testing.T) {
	store := core.NewMemoryAuditStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		outcome := core.DeliveryOutcomeSuccess
		if i%2 == 0 {
			outcome = core.DeliveryOutcomeRetry
		}
		if err := store.Record(ctx, core.AuditEntry{
			SubscriptionID: "sub-1",
			Event:          core.EventShiftStarted,
			Outcome:        outcome,
			Attempt:        i + 1,
			Message:        fmt.Sprintf("entry %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.Record(ctx, core.AuditEntry{SubscriptionID: "sub-2", Outcome: core.DeliveryOutcomeRetry}); err != nil {
		t.Fatalf("record other: %v", err)
	}

	qry := NewListAuditQuery(store)
	page, err := qry.Query(ctx, ListAuditMessage{Filter: core.AuditFilter{
		SubscriptionID: "sub-1",
		Outcome:        core.DeliveryOutcomeRetry,
		Page:           1,
		PerPage:        2,
	}})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 retry entries for sub-1, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page.Items))
	}
	if page.Items[0].Message != "entry 4" {
		t.Fatalf("expected newest entry first, got %q", page.Items[0].Message)
	}
}

func TestListAuditMessage_ValidateReturnsRichError(t *testing.T) {
	cases := []ListAuditMessage{
		{Filter: core.AuditFilter{Page: -1}},
		{Filter: core.AuditFilter{PerPage: -1}},
		{Filter: core.AuditFilter{Outcome: "exploded"}},
	}
	for _, msg := range cases {
		err := msg.Validate()
		if err == nil {
			t.Fatalf("expected validation error for %#v", msg.Filter)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("expected validation category, got %q", rich.Category)
		}
		if rich.TextCode != core.HooksErrorBadInput {
			t.Fatalf("expected %q text code, got %q", core.HooksErrorBadInput, rich.TextCode)
		}
		if rich.Code != http.StatusBadRequest {
			t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
		}
	}
	if err := (ListAuditMessage{Filter: core.AuditFilter{Outcome: core.DeliveryOutcomeFailed}}).Validate(); err != nil {
		t.Fatalf("expected failed outcome to validate, got %v", err)
	}
}

func TestGetSubscriptionQuery_StripsSecret(t *testing.T) {
	store := core.NewMemorySubscriptionStore()
	ctx := context.Background()
	created, err := store.Create(ctx, core.CreateSubscriptionInput{
		Name:   "line-1",
		URL:    "https://subscriber.example.com/hooks",
		Events: []string{core.EventQualityDefectRecorded},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	qry := NewGetSubscriptionQuery(store)
	sub, err := qry.Query(ctx, GetSubscriptionMessage{SubscriptionID: created.ID})
	if err != nil {
		t.Fatalf("query subscription: %v", err)
	}
	if sub.ID != created.ID || sub.Name != "line-1" {
		t.Fatalf("unexpected subscription: %#v", sub)
	}
	if sub.Secret != "" {
		t.Fatalf("expected secret to be stripped")
	}

	_, err = qry.Query(ctx, GetSubscriptionMessage{SubscriptionID: "missing"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.HooksErrorSubscriptionNotFound {
		t.Fatalf("expected not found envelope, got %v", err)
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var snapshot *DeliverySnapshotQuery
	_, err := snapshot.Query(context.Background(), DeliverySnapshotMessage{})
	assertInternal(t, err)

	_, err = NewListAuditQuery(nil).Query(context.Background(), ListAuditMessage{})
	assertInternal(t, err)

	_, err = NewGetSubscriptionQuery(nil).Query(context.Background(), GetSubscriptionMessage{SubscriptionID: "sub-1"})
	assertInternal(t, err)
}

func assertInternal(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected query dependency error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubSnapshotReader struct {
	snapshot webhooks.Snapshot
}

func (s stubSnapshotReader) Snapshot() webhooks.Snapshot {
	return s.snapshot
}
