package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

type captureIntake struct {
	jobs []Job
}

func (c *captureIntake) Enqueue(_ context.Context, job Job) error {
	c.jobs = append(c.jobs, job)
	return nil
}

type failingStore struct {
	core.SubscriptionStore
	err   error
	panic bool
}

func (s failingStore) FindBySubscribedEvent(context.Context, string) ([]core.Subscription, error) {
	if s.panic {
		panic("store exploded")
	}
	return nil, s.err
}

func TestTrigger_NoSubscriptionsIsNoop(t *testing.T) {
	store := core.NewMemorySubscriptionStore()
	store.Put(testSubscription(core.EventShiftStarted))
	intake := &captureIntake{}
	evaluator := NewEvaluator(store, intake, nil, "oee-monitor", "1.0.0")

	result := evaluator.Trigger(context.Background(), core.EventOEECalculated, map[string]any{"oee": 0.5}, nil)
	if result.Candidates != 0 || result.Enqueued != 0 || len(intake.jobs) != 0 {
		t.Fatalf("expected no-op, got %#v", result)
	}
}

func TestTrigger_ResourceFilter(t *testing.T) {
	store := core.NewMemorySubscriptionStore()
	sub := testSubscription()
	sub.Filter = core.Filter{ResourceIDs: []string{"m-1", "m-2"}}
	store.Put(sub)
	intake := &captureIntake{}
	evaluator := NewEvaluator(store, intake, nil, "oee-monitor", "1.0.0")
	ctx := context.Background()

	evaluator.Trigger(ctx, core.EventMachineStatusChanged, map[string]any{"machineId": "m-9"}, nil)
	if len(intake.jobs) != 0 {
		t.Fatalf("expected resource outside allow-list to be skipped")
	}

	shapes := []map[string]any{
		{"machineId": "m-1"},
		{"machine_id": "m-2"},
		{"machine": map[string]any{"id": "m-1"}},
		{"machine": map[string]any{"_id": "m-2"}},
		{"resourceId": "m-1"},
		{"resource_id": "m-1"},
		{"id": "m-2"},
	}
	for _, data := range shapes {
		evaluator.Trigger(ctx, core.EventMachineStatusChanged, data, nil)
	}
	if len(intake.jobs) != len(shapes) {
		t.Fatalf("expected one job per known payload shape, got %d", len(intake.jobs))
	}
}

func TestShouldTrigger_DimensionsAndConditions(t *testing.T) {
	data, _ := normalizeData(map[string]any{
		"machine": map[string]any{"id": "m-1", "department": "assembly", "location": "plant-a"},
		"status":  "down",
		"metrics": map[string]any{"oee": 0.65, "shift": 2},
	})

	cases := []struct {
		name   string
		filter core.Filter
		want   bool
	}{
		{"empty filter", core.Filter{}, true},
		{"department allowed", core.Filter{Departments: []string{"assembly"}}, true},
		{"department rejected", core.Filter{Departments: []string{"paint"}}, false},
		{"location allowed", core.Filter{Locations: []string{"plant-a"}}, true},
		{"location rejected", core.Filter{Locations: []string{"plant-b"}}, false},
		{"condition equal", core.Filter{Conditions: map[string]any{"status": "down"}}, true},
		{"condition numeric", core.Filter{Conditions: map[string]any{"metrics.shift": 2}}, true},
		{"condition mismatch", core.Filter{Conditions: map[string]any{"status": "running"}}, false},
		{"condition path missing", core.Filter{Conditions: map[string]any{"metrics.quality": 1}}, false},
	}
	for _, tc := range cases {
		if got := ShouldTrigger(tc.filter, data); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestTrigger_LargeIntegersKeepPrecision(t *testing.T) {
	const id = "9007199254740993"
	store := core.NewMemorySubscriptionStore()
	sub := testSubscription()
	sub.Filter = core.Filter{
		ResourceIDs: []string{id},
		Conditions:  map[string]any{"counter": int64(9007199254740993)},
	}
	store.Put(sub)
	intake := &captureIntake{}
	evaluator := NewEvaluator(store, intake, nil, "oee-monitor", "1.0.0")

	result := evaluator.Trigger(context.Background(), core.EventMachineStatusChanged, map[string]any{
		"machineId": int64(9007199254740993),
		"counter":   int64(9007199254740993),
	}, nil)
	if result.Matched != 1 || len(intake.jobs) != 1 {
		t.Fatalf("expected large resource id to match, got %#v", result)
	}
	for _, want := range []string{`"machineId":9007199254740993`, `"counter":9007199254740993`} {
		if !bytes.Contains(intake.jobs[0].Payload, []byte(want)) {
			t.Fatalf("expected %s in payload, got %s", want, intake.jobs[0].Payload)
		}
	}

	data, _ := normalizeData(map[string]any{"machineId": int64(9007199254740992)})
	if ShouldTrigger(core.Filter{ResourceIDs: []string{id}}, data) {
		t.Fatalf("expected neighbouring id to be rejected")
	}
	if ShouldTrigger(core.Filter{Conditions: map[string]any{"machineId": int64(9007199254740993)}}, data) {
		t.Fatalf("expected neighbouring integer condition to be rejected")
	}
}

func TestTrigger_EnvelopeSharedAndReservedKeysWin(t *testing.T) {
	store := core.NewMemorySubscriptionStore()
	store.Put(testSubscription(core.EventOEECalculated))
	store.Put(testSubscription(core.EventOEECalculated))
	intake := &captureIntake{}
	evaluator := NewEvaluator(store, intake, nil, "oee-monitor", "1.0.0")
	fixed := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	evaluator.now = func() time.Time { return fixed }

	evaluator.Trigger(context.Background(), core.EventOEECalculated, map[string]any{"oee": 0.9},
		map[string]any{"source": "spoofed", "shiftId": "s-1"})
	if len(intake.jobs) != 2 {
		t.Fatalf("expected two jobs, got %d", len(intake.jobs))
	}
	if &intake.jobs[0].Payload[0] != &intake.jobs[1].Payload[0] {
		t.Fatalf("expected payload serialized once and shared")
	}

	var envelope map[string]any
	if err := json.Unmarshal(intake.jobs[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope["source"] != "oee-monitor" || envelope["version"] != "1.0.0" {
		t.Fatalf("expected reserved keys to win, got %#v", envelope)
	}
	if envelope["shiftId"] != "s-1" {
		t.Fatalf("expected option to be merged, got %#v", envelope)
	}
	if envelope["event"] != core.EventOEECalculated {
		t.Fatalf("expected event name, got %#v", envelope["event"])
	}
	if envelope["timestamp"] != fixed.Format(time.RFC3339Nano) || intake.jobs[0].Timestamp != envelope["timestamp"] {
		t.Fatalf("expected matching timestamps, got %#v / %q", envelope["timestamp"], intake.jobs[0].Timestamp)
	}
	data := envelope["data"].(map[string]any)
	if data["oee"] != 0.9 {
		t.Fatalf("expected data passthrough, got %#v", data)
	}
}

func TestTrigger_SwallowsStoreErrorsAndPanics(t *testing.T) {
	intake := &captureIntake{}
	evaluator := NewEvaluator(failingStore{err: errors.New("db down")}, intake, nil, "oee-monitor", "1.0.0")
	result := evaluator.Trigger(context.Background(), core.EventMachineCreated, map[string]any{}, nil)
	if result.Enqueued != 0 {
		t.Fatalf("expected nothing enqueued on store error")
	}

	evaluator = NewEvaluator(failingStore{panic: true}, intake, nil, "oee-monitor", "1.0.0")
	result = evaluator.Trigger(context.Background(), core.EventMachineCreated, map[string]any{}, nil)
	if result.Enqueued != 0 || len(intake.jobs) != 0 {
		t.Fatalf("expected panic to be swallowed without jobs")
	}
}
