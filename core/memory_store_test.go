package core

import (
	"context"
	"testing"
	"time"
)

func TestMemorySubscriptionStore_CreateGeneratesSecret(t *testing.T) {
	store := NewMemorySubscriptionStore()
	sub, err := store.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sub.Secret) != SecretBytes*2 {
		t.Fatalf("expected %d hex chars, got %d", SecretBytes*2, len(sub.Secret))
	}
	if sub.Status != SubscriptionStatusActive {
		t.Fatalf("expected active status, got %q", sub.Status)
	}
	secret, err := store.RevealSecret(context.Background(), sub.ID)
	if err != nil || secret != sub.Secret {
		t.Fatalf("expected revealed secret to match, got %q err=%v", secret, err)
	}
}

func TestMemorySubscriptionStore_DeactivateExcludesFromLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySubscriptionStore()
	sub, err := store.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, _ := store.FindBySubscribedEvent(ctx, EventMachineStatusChanged)
	if len(found) != 1 {
		t.Fatalf("expected one active subscription, got %d", len(found))
	}

	if err := store.Deactivate(ctx, sub.ID, "too many failures"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	found, _ = store.FindBySubscribedEvent(ctx, EventMachineStatusChanged)
	if len(found) != 0 {
		t.Fatalf("expected failed subscription to be excluded, got %d", len(found))
	}

	reactivated, err := store.Reactivate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if !reactivated.Active() || reactivated.StatusNote != "" {
		t.Fatalf("expected reactivated subscription, got %#v", reactivated)
	}
}

func TestMemorySubscriptionStore_UpdateStatistics(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySubscriptionStore()
	sub := store.Put(Subscription{Name: "x", Events: []string{EventShiftStarted}})

	now := time.Now().UTC()
	updated, err := store.UpdateStatistics(ctx, sub.ID, StatisticsPatch{SentDelta: 1, SuccessDelta: 1, LastSuccessAt: &now})
	if err != nil {
		t.Fatalf("update statistics: %v", err)
	}
	if updated.Statistics.TotalSent != 1 || updated.Statistics.TotalSuccess != 1 {
		t.Fatalf("unexpected statistics: %#v", updated.Statistics)
	}

	if _, err := store.UpdateStatistics(ctx, "missing", StatisticsPatch{}); MapError(err).TextCode != HooksErrorSubscriptionNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestMemoryAuditStore_ListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAuditStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		outcome := DeliveryOutcomeRetry
		if i == 4 {
			outcome = DeliveryOutcomeFailed
		}
		_ = store.Record(ctx, AuditEntry{
			SubscriptionID: "sub_1",
			Outcome:        outcome,
			Attempt:        i + 1,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}
	_ = store.Record(ctx, AuditEntry{SubscriptionID: "sub_2", Outcome: DeliveryOutcomeSuccess, CreatedAt: base})

	page, err := store.List(ctx, AuditFilter{SubscriptionID: "sub_1", Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 5 entries, got %d of %d", len(page.Items), page.Total)
	}
	if page.Items[0].Attempt != 5 {
		t.Fatalf("expected newest first, got attempt %d", page.Items[0].Attempt)
	}

	failed, _ := store.List(ctx, AuditFilter{Outcome: DeliveryOutcomeFailed})
	if failed.Total != 1 {
		t.Fatalf("expected one failed entry, got %d", failed.Total)
	}
}
