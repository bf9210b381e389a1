package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
)

type DispatcherConfig struct {
	MaxConcurrent  int
	DefaultTimeout time.Duration
	Source         string
	DefaultRetry   core.RetryPolicy
	Breaker        core.BreakerConfig
}

// StatusError is a non-2xx response from a subscriber.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("webhooks: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhooks: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Dispatcher drains the queue with at most MaxConcurrent concurrent
// deliveries. One mutex guards the in-flight counter, the retry timers and
// the closed flag; the queue carries its own lock.
type Dispatcher struct {
	store     core.SubscriptionStore
	sender    core.Sender
	recorder  *Recorder
	scheduler Scheduler
	breakers  *breakerSet
	limiters  *limiterSet
	observer  *core.Observer
	config    DispatcherConfig
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	queue *Queue

	mu           sync.Mutex
	inFlight     int
	peakInFlight int
	closed       bool
	retries      map[uint64]Timer
	nextRetryID  uint64
	counters     dispatchCounters
	wg           sync.WaitGroup
}

type dispatchCounters struct {
	dispatched uint64
	succeeded  uint64
	retried    uint64
	failed     uint64
	throttled  uint64
	dropped    uint64
}

func NewDispatcher(
	store core.SubscriptionStore,
	sender core.Sender,
	recorder *Recorder,
	observer *core.Observer,
	config DispatcherConfig,
) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: subscription store is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("webhooks: sender is required")
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = core.DefaultConfig().Delivery.MaxConcurrent
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = core.DefaultSubscriptionTimeout
	}
	if strings.TrimSpace(config.Source) == "" {
		config.Source = core.DefaultConfig().Source
	}
	config.DefaultRetry = effectivePolicy(config.DefaultRetry, core.DefaultRetryPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:     store,
		sender:    sender,
		recorder:  recorder,
		scheduler: timerScheduler{},
		limiters:  newLimiterSet(),
		observer:  observer,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   ctx,
		cancel:    cancel,
		queue:     NewQueue(),
		retries:   map[uint64]Timer{},
	}
	d.breakers = newBreakerSet(config.Breaker, func(subscriptionID, from, to string) {
		d.observer.Warn(context.Background(), "webhooks: circuit breaker state changed", map[string]any{
			"subscription_id": subscriptionID,
			"from":            from,
			"to":              to,
		})
	})
	return d, nil
}

// Enqueue adds job to the queue and starts draining. It fails only after Close.
func (d *Dispatcher) Enqueue(_ context.Context, job Job) error {
	if d == nil {
		return fmt.Errorf("webhooks: dispatcher is nil")
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return core.ErrEngineClosed
	}
	d.queue.Push(job)
	d.mu.Unlock()
	d.drain()
	return nil
}

// drain starts jobs while a slot is free. Safe to call any number of times.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.closed && d.inFlight < d.config.MaxConcurrent {
		job, ok := d.queue.Pop()
		if !ok {
			return
		}
		d.inFlight++
		if d.inFlight > d.peakInFlight {
			d.peakInFlight = d.inFlight
		}
		d.counters.dispatched++
		d.wg.Add(1)
		go d.run(job)
	}
}

func (d *Dispatcher) run(job Job) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.observer.Error(d.baseCtx, "webhooks: delivery panic", map[string]any{
				"job_id":          job.ID,
				"subscription_id": job.SubscriptionID,
				"error":           fmt.Sprint(recovered),
			})
		}
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
		d.wg.Done()
		d.drain()
	}()
	d.attempt(d.baseCtx, job)
}

func (d *Dispatcher) attempt(ctx context.Context, job Job) {
	startedAt := d.now()

	sub, err := d.store.Get(ctx, job.SubscriptionID)
	if err != nil {
		d.handleLoadFailure(ctx, job, err, startedAt)
		return
	}
	policy := effectivePolicy(sub.RetryPolicy, d.config.DefaultRetry)

	if !job.reserved {
		if wait := d.limiters.Reserve(sub, startedAt); wait > 0 {
			job.reserved = true
			d.mu.Lock()
			d.counters.throttled++
			d.mu.Unlock()
			d.observer.Debug(ctx, "webhooks: delivery throttled", map[string]any{
				"job_id":          job.ID,
				"subscription_id": sub.ID,
				"wait_ms":         wait.Milliseconds(),
			})
			d.scheduleRetry(job, wait)
			return
		}
	}
	job.reserved = false

	req := d.buildRequest(sub, job)
	var response core.DeliveryResponse
	sendErr := d.breakers.For(sub.ID).Execute(func() error {
		res, err := d.sender.Send(ctx, req)
		response = res
		if err != nil {
			return err
		}
		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			return &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(res.Body))}
		}
		return nil
	})
	elapsed := d.now().Sub(startedAt)

	details := DeliveryDetails{
		JobID:       job.ID,
		Event:       job.Event,
		Attempt:     job.Attempt + 1,
		MaxAttempts: policy.MaxAttempts(),
		StatusCode:  response.StatusCode,
		Duration:    elapsed,
		Err:         sendErr,
	}
	if errors.Is(sendErr, ErrCircuitOpen) {
		details.Metadata = map[string]any{"reason": "circuit_open"}
	}

	if sendErr == nil {
		d.mu.Lock()
		d.counters.succeeded++
		d.mu.Unlock()
		d.recorder.RecordDeliveryOutcome(ctx, sub.ID, core.DeliveryOutcomeSuccess, details)
		return
	}

	if job.Attempt < policy.MaxRetries {
		delay := BackoffDelay(policy, job.Attempt)
		nextAt := d.now().Add(delay)
		details.NextAttemptAt = &nextAt
		details.RetryDelay = delay
		d.mu.Lock()
		d.counters.retried++
		d.mu.Unlock()
		d.recorder.RecordDeliveryOutcome(ctx, sub.ID, core.DeliveryOutcomeRetry, details)

		next := job
		next.Attempt++
		d.scheduleRetry(next, delay)
		return
	}

	d.mu.Lock()
	d.counters.failed++
	d.mu.Unlock()
	d.recorder.RecordDeliveryOutcome(ctx, sub.ID, core.DeliveryOutcomeFailed, details)
}

// handleLoadFailure abandons jobs whose subscription is gone and treats any
// other store error as a failed attempt under the default policy.
func (d *Dispatcher) handleLoadFailure(ctx context.Context, job Job, loadErr error, startedAt time.Time) {
	policy := d.config.DefaultRetry
	details := DeliveryDetails{
		JobID:       job.ID,
		Event:       job.Event,
		Attempt:     job.Attempt + 1,
		MaxAttempts: policy.MaxAttempts(),
		Duration:    d.now().Sub(startedAt),
		Err:         loadErr,
	}
	missing := core.MapError(loadErr).TextCode == core.HooksErrorSubscriptionNotFound
	if !missing && job.Attempt < policy.MaxRetries {
		delay := BackoffDelay(policy, job.Attempt)
		nextAt := d.now().Add(delay)
		details.NextAttemptAt = &nextAt
		details.RetryDelay = delay
		details.Metadata = map[string]any{"reason": "subscription_unavailable"}
		d.mu.Lock()
		d.counters.retried++
		d.mu.Unlock()
		d.recorder.RecordDeliveryOutcome(ctx, job.SubscriptionID, core.DeliveryOutcomeRetry, details)
		next := job
		next.Attempt++
		d.scheduleRetry(next, delay)
		return
	}
	if missing {
		details.Metadata = map[string]any{"reason": "subscription_missing"}
	}
	d.mu.Lock()
	d.counters.failed++
	d.mu.Unlock()
	d.recorder.RecordDeliveryOutcome(ctx, job.SubscriptionID, core.DeliveryOutcomeFailed, details)
}

func (d *Dispatcher) buildRequest(sub core.Subscription, job Job) core.DeliveryRequest {
	headers := make(map[string]string, len(sub.Headers)+5)
	for key, value := range sub.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = value
	}
	headers["Content-Type"] = "application/json"
	headers[HeaderSignature] = SignatureHeader(sub.Secret, job.Payload)
	headers[HeaderEvent] = job.Event
	headers[HeaderTimestamp] = job.Timestamp
	headers[HeaderSource] = d.config.Source

	timeout := sub.Timeout
	if timeout <= 0 {
		timeout = d.config.DefaultTimeout
	}
	return core.DeliveryRequest{
		URL:     sub.URL,
		Headers: headers,
		Body:    job.Payload,
		Timeout: timeout,
	}
}

// scheduleRetry re-queues job after delay without holding a worker slot.
func (d *Dispatcher) scheduleRetry(job Job, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.counters.dropped++
		return
	}
	d.nextRetryID++
	id := d.nextRetryID
	d.retries[id] = d.scheduler.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.retries, id)
		if d.closed {
			d.counters.dropped++
			d.mu.Unlock()
			return
		}
		d.queue.Push(job)
		d.mu.Unlock()
		d.drain()
	})
}

// Close stops intake, cancels pending retries and waits for in-flight
// deliveries. Jobs still queued are dropped. When ctx expires first the
// in-flight requests are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for id, timer := range d.retries {
		delete(d.retries, id)
		// A timer that already fired counts its own drop.
		if timer.Stop() {
			d.counters.dropped++
		}
	}
	dropped := d.queue.Clear()
	d.counters.dropped += uint64(len(dropped))
	d.mu.Unlock()

	if len(dropped) > 0 {
		d.observer.Warn(ctx, "webhooks: dropping queued deliveries on close", map[string]any{
			"count": len(dropped),
		})
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// ResetBreaker forgets the circuit breaker state of a subscription.
func (d *Dispatcher) ResetBreaker(subscriptionID string) {
	if d == nil {
		return
	}
	d.breakers.Forget(subscriptionID)
}
