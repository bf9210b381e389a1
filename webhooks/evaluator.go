package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

var (
	resourceIDPaths = []string{"machineId", "machine_id", "machine.id", "machine._id", "resourceId", "resource_id", "id"}
	departmentPaths = []string{"department", "machine.department"}
	locationPaths   = []string{"location", "machine.location"}
)

var reservedEnvelopeKeys = map[string]struct{}{
	"event":     {},
	"timestamp": {},
	"data":      {},
	"source":    {},
	"version":   {},
}

// TriggerResult summarizes one Trigger call. Candidates are the active
// subscriptions interested in the event; Enqueued passed their filter.
type TriggerResult struct {
	Event      string
	Candidates int
	Matched    int
	Enqueued   int
	JobIDs     []string
}

type Evaluator struct {
	store    core.SubscriptionStore
	intake   Intake
	observer *core.Observer
	source   string
	version  string
	now      func() time.Time
}

func NewEvaluator(store core.SubscriptionStore, intake Intake, observer *core.Observer, source, version string) *Evaluator {
	return &Evaluator{
		store:    store,
		intake:   intake,
		observer: observer,
		source:   source,
		version:  version,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Trigger evaluates event against the interested subscriptions and enqueues
// one job per match. It never fails: errors and panics are logged and the
// event is dropped for delivery purposes.
func (e *Evaluator) Trigger(ctx context.Context, event string, data any, options map[string]any) (result TriggerResult) {
	event = strings.TrimSpace(event)
	result.Event = event
	startedAt := time.Now()
	var triggerErr error
	defer func() {
		if recovered := recover(); recovered != nil {
			triggerErr = fmt.Errorf("webhooks: trigger panic: %v", recovered)
		}
		if e == nil || e.observer == nil {
			return
		}
		if result.Matched > 0 {
			e.observer.Count(ctx, core.MetricTriggerMatched, int64(result.Matched), map[string]string{"event": event})
		}
		e.observer.ObserveOperation(ctx, startedAt, "trigger", triggerErr, map[string]any{
			"event":      event,
			"candidates": result.Candidates,
			"matched":    result.Matched,
			"enqueued":   result.Enqueued,
		})
	}()

	if e == nil || e.store == nil || e.intake == nil {
		triggerErr = fmt.Errorf("webhooks: evaluator is not configured")
		return result
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event == "" {
		triggerErr = fmt.Errorf("webhooks: event name is required")
		return result
	}

	candidates, err := e.store.FindBySubscribedEvent(ctx, event)
	if err != nil {
		triggerErr = fmt.Errorf("webhooks: load subscriptions for %q: %w", event, err)
		return result
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return result
	}

	normalized, err := normalizeData(data)
	if err != nil {
		triggerErr = fmt.Errorf("webhooks: normalize event data: %w", err)
		return result
	}

	matched := make([]core.Subscription, 0, len(candidates))
	for _, sub := range candidates {
		if !sub.Active() || !sub.SubscribedTo(event) {
			continue
		}
		if ShouldTrigger(sub.Filter, normalized) {
			matched = append(matched, sub)
		}
	}
	result.Matched = len(matched)
	if len(matched) == 0 {
		return result
	}

	now := e.now()
	timestamp := now.Format(time.RFC3339Nano)
	payload, err := json.Marshal(BuildEnvelope(event, timestamp, normalized, e.source, e.version, options))
	if err != nil {
		triggerErr = fmt.Errorf("webhooks: encode envelope: %w", err)
		return result
	}

	for _, sub := range matched {
		job := NewJob(sub.ID, event, timestamp, payload, now)
		if enqueueErr := e.intake.Enqueue(ctx, job); enqueueErr != nil {
			e.observer.Error(ctx, "webhooks: enqueue delivery failed", map[string]any{
				"event":           event,
				"subscription_id": sub.ID,
				"error":           enqueueErr.Error(),
			})
			continue
		}
		result.Enqueued++
		result.JobIDs = append(result.JobIDs, job.ID)
	}
	return result
}

// ShouldTrigger applies the filter to normalized event data. Every non-empty
// dimension is an allow-list; an empty filter matches everything. A condition
// whose path does not resolve rejects the event.
func ShouldTrigger(filter core.Filter, data any) bool {
	if len(filter.ResourceIDs) > 0 && !allowed(filter.ResourceIDs, data, resourceIDPaths) {
		return false
	}
	if len(filter.Departments) > 0 && !allowed(filter.Departments, data, departmentPaths) {
		return false
	}
	if len(filter.Locations) > 0 && !allowed(filter.Locations, data, locationPaths) {
		return false
	}
	for path, expected := range filter.Conditions {
		actual, ok := ResolvePath(data, path)
		if !ok {
			return false
		}
		if !valuesEqual(actual, expected) {
			return false
		}
	}
	return true
}

// BuildEnvelope wraps event data for the wire. Options extend the envelope
// but cannot replace the reserved keys.
func BuildEnvelope(event, timestamp string, data any, source, version string, options map[string]any) map[string]any {
	envelope := make(map[string]any, len(options)+len(reservedEnvelopeKeys))
	for key, value := range options {
		if _, reserved := reservedEnvelopeKeys[key]; reserved {
			continue
		}
		envelope[key] = value
	}
	envelope["event"] = event
	envelope["timestamp"] = timestamp
	envelope["data"] = data
	envelope["source"] = source
	envelope["version"] = version
	return envelope
}

func allowed(list []string, data any, paths []string) bool {
	value, ok := lookupString(data, paths...)
	if !ok {
		return false
	}
	for _, candidate := range list {
		if strings.TrimSpace(candidate) == value {
			return true
		}
	}
	return false
}

func valuesEqual(actual, expected any) bool {
	normalized, err := normalizeData(expected)
	if err != nil {
		return false
	}
	if a, ok := actual.(json.Number); ok {
		if b, ok := normalized.(json.Number); ok {
			return numbersEqual(a, b)
		}
	}
	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(normalized); ok {
			return a == b
		}
	}
	return reflect.DeepEqual(actual, normalized)
}

// numbersEqual compares integers exactly and falls back to float equality
// for fractions and exponents.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ai, errA := a.Int64()
	bi, errB := b.Int64()
	if errA == nil && errB == nil {
		return ai == bi
	}
	af, errA := a.Float64()
	bf, errB := b.Float64()
	return errA == nil && errB == nil && af == bf
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	default:
		return 0, false
	}
}
