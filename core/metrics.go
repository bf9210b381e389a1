package core

import "context"

// Metric names, relative to the observer prefix.
const (
	MetricTriggerMatched          = "trigger.matched"
	MetricDeliveryTotal           = "delivery.total"
	MetricDeliveryDuration        = "delivery.duration_ms"
	MetricSubscriptionDeactivated = "subscription.deactivated"
)

// DeliveryTags labels a delivery metric with its event and outcome.
func DeliveryTags(event string, outcome DeliveryOutcome) map[string]string {
	return map[string]string{"event": event, "outcome": string(outcome)}
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// cloneTags copies tags so recorders may keep them.
func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
