// Package webhooks delivers OEE domain events to external subscribers.
//
// A triggered event is matched against active subscriptions, wrapped in an
// envelope, serialized once and queued as one job per subscriber. The
// dispatcher runs at most MaxConcurrent jobs at a time; failed attempts are
// re-queued by timer with exponential backoff until the retry policy is
// exhausted:
// queued -> in_flight -> success|retry_scheduled|failed.
package webhooks
