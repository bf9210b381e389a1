package gojob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oee-hooks/core"
	"github.com/goliatone/go-oee-hooks/webhooks"
)

const (
	JobIDDelivery      = "oee-hooks.delivery"
	ScriptPathDelivery = "oee-hooks.delivery"

	// DedupPolicyDrop drops a second message carrying the same delivery job id.
	DedupPolicyDrop = "drop"
)

const (
	paramJobID          = "job_id"
	paramSubscriptionID = "subscription_id"
	paramEvent          = "event"
	paramTimestamp      = "timestamp"
	paramPayload        = "payload"
	paramAttempt        = "attempt"
	paramCreatedAt      = "created_at"
)

var ErrMalformedMessage = errors.New("gojob: malformed delivery message")

// NackOptions mirrors queue.NackOptions so retry bounds can be applied
// before anything reaches the backend.
type NackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts NackOptions, attempt int) NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

func ToNackOptions(opts NackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) NackOptions {
	return NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// ToExecutionMessage maps a delivery job to a go-job message. The payload is
// base64 encoded so the message survives any JSON backed queue unchanged.
func ToExecutionMessage(j webhooks.Job) *job.ExecutionMessage {
	params := map[string]any{
		paramJobID:          strings.TrimSpace(j.ID),
		paramSubscriptionID: strings.TrimSpace(j.SubscriptionID),
		paramEvent:          strings.TrimSpace(j.Event),
		paramTimestamp:      j.Timestamp,
		paramPayload:        base64.StdEncoding.EncodeToString(j.Payload),
		paramAttempt:        j.Attempt,
	}
	if !j.CreatedAt.IsZero() {
		params[paramCreatedAt] = j.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDDelivery,
		ScriptPath:     ScriptPathDelivery,
		Parameters:     params,
		IdempotencyKey: idempotencyKey(j),
		DedupPolicy:    job.DeduplicationPolicy(DedupPolicyDrop),
	}
}

// FromExecutionMessage maps a go-job message back into a delivery job.
func FromExecutionMessage(msg *job.ExecutionMessage) (webhooks.Job, error) {
	if msg == nil {
		return webhooks.Job{}, fmt.Errorf("%w: message is nil", ErrMalformedMessage)
	}
	if strings.TrimSpace(msg.JobID) != JobIDDelivery {
		return webhooks.Job{}, fmt.Errorf("%w: unexpected job id %q", ErrMalformedMessage, msg.JobID)
	}
	params := msg.Parameters
	out := webhooks.Job{
		ID:             stringParam(params, paramJobID),
		SubscriptionID: stringParam(params, paramSubscriptionID),
		Event:          stringParam(params, paramEvent),
		Timestamp:      stringParam(params, paramTimestamp),
	}
	if out.SubscriptionID == "" || out.Event == "" {
		return webhooks.Job{}, fmt.Errorf("%w: subscription_id and event are required", ErrMalformedMessage)
	}

	payload, err := payloadParam(params[paramPayload])
	if err != nil {
		return webhooks.Job{}, err
	}
	if len(payload) == 0 {
		return webhooks.Job{}, fmt.Errorf("%w: payload is required", ErrMalformedMessage)
	}
	out.Payload = payload

	attempt, err := intParam(params[paramAttempt])
	if err != nil {
		return webhooks.Job{}, err
	}
	if attempt < 0 {
		attempt = 0
	}
	out.Attempt = attempt

	if raw := stringParam(params, paramCreatedAt); raw != "" {
		createdAt, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			return webhooks.Job{}, fmt.Errorf("%w: created_at: %v", ErrMalformedMessage, parseErr)
		}
		out.CreatedAt = createdAt.UTC()
	}
	return out, nil
}

// Forwarder is an intake that hands evaluator output to a go-job queue
// instead of the in-memory dispatcher.
type Forwarder struct {
	enqueuer queue.Enqueuer
}

func NewForwarder(enqueuer queue.Enqueuer) *Forwarder {
	return &Forwarder{enqueuer: enqueuer}
}

func (f *Forwarder) Enqueue(ctx context.Context, j webhooks.Job) error {
	if f == nil || f.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if strings.TrimSpace(j.SubscriptionID) == "" {
		return fmt.Errorf("gojob: subscription_id is required")
	}
	return f.enqueuer.Enqueue(ctx, ToExecutionMessage(j))
}

// PumpConfig bounds how the pump nacks deliveries it cannot hand over.
type PumpConfig struct {
	Retry RetryPolicy
	// UnavailableDelay is the requeue delay used while the intake is closed.
	UnavailableDelay time.Duration
	// IdleDelay is slept after a dequeue error before polling again.
	IdleDelay time.Duration
}

// Pump drains a go-job queue into an intake, normally the engine dispatcher.
type Pump struct {
	dequeuer queue.Dequeuer
	intake   webhooks.Intake
	config   PumpConfig
	logger   glog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func NewPump(dequeuer queue.Dequeuer, intake webhooks.Intake, config PumpConfig, logger glog.Logger) *Pump {
	if config.UnavailableDelay <= 0 {
		config.UnavailableDelay = 5 * time.Second
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = 250 * time.Millisecond
	}
	return &Pump{
		dequeuer: dequeuer,
		intake:   intake,
		config:   config,
		logger:   glog.Ensure(logger),
		attempts: map[string]int{},
	}
}

// Run dequeues until ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	if p == nil || p.dequeuer == nil || p.intake == nil {
		return fmt.Errorf("gojob: pump is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := p.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Warn("gojob: dequeue failed", "error", err)
			if !sleep(ctx, p.config.IdleDelay) {
				return ctx.Err()
			}
			continue
		}
		if delivery == nil {
			if !sleep(ctx, p.config.IdleDelay) {
				return ctx.Err()
			}
			continue
		}
		if err := p.Handle(ctx, delivery); err != nil {
			p.logger.Error("gojob: settle delivery failed", "error", err)
		}
	}
}

// Handle hands one queue delivery to the intake. Malformed messages are dead
// lettered; a closed intake requeues with UnavailableDelay.
func (p *Pump) Handle(ctx context.Context, delivery queue.Delivery) error {
	if p == nil || p.intake == nil {
		return fmt.Errorf("gojob: pump is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	j, err := FromExecutionMessage(msg)
	if err != nil {
		p.logger.Warn("gojob: dead lettering malformed delivery", "error", err)
		return delivery.Nack(ctx, ToNackOptions(NackOptions{DeadLetter: true, Reason: err.Error()}))
	}

	if err := p.intake.Enqueue(ctx, j); err != nil {
		key := attemptKey(msg, j)
		attempt := p.bump(key)
		reason := "intake rejected delivery"
		if errors.Is(err, core.ErrEngineClosed) {
			reason = "delivery engine is closed"
		}
		opts := p.config.Retry.NormalizeAttempt(NackOptions{
			Delay:   p.config.UnavailableDelay,
			Requeue: true,
			Reason:  reason,
		}, attempt)
		if !opts.Requeue {
			p.forget(key)
		}
		p.logger.Warn("gojob: intake rejected delivery",
			"subscription_id", j.SubscriptionID,
			"event", j.Event,
			"attempt", attempt,
			"requeue", opts.Requeue,
			"error", err,
		)
		return delivery.Nack(ctx, ToNackOptions(opts))
	}
	p.forget(attemptKey(msg, j))
	return delivery.Ack(ctx)
}

func (p *Pump) bump(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[key]++
	return p.attempts[key]
}

func (p *Pump) forget(key string) {
	p.mu.Lock()
	delete(p.attempts, key)
	p.mu.Unlock()
}

// LoggingHook reports go-job worker lifecycle events on a glog logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("debug", "gojob: delivery job started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("debug", "gojob: delivery job handed to engine", event)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("error", "gojob: delivery job failed", event)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("warn", "gojob: delivery job retrying", event)
}

func (h *LoggingHook) log(level, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	args := eventFields(event)
	switch level {
	case "error":
		h.logger.Error(message, args...)
	case "warn":
		h.logger.Warn(message, args...)
	default:
		h.logger.Debug(message, args...)
	}
}

func eventFields(event worker.Event) []any {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	args := []any{"attempt", event.Attempt}
	if msg != nil {
		args = append(args,
			"job_id", msg.JobID,
			"subscription_id", stringParam(msg.Parameters, paramSubscriptionID),
			"event", stringParam(msg.Parameters, paramEvent),
		)
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		args = append(args, "duration", event.Duration.String())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

func idempotencyKey(j webhooks.Job) string {
	id := strings.TrimSpace(j.ID)
	if id == "" {
		id = strings.TrimSpace(j.SubscriptionID) + ":" + strings.TrimSpace(j.Event) + ":" + j.Timestamp
	}
	return id + ":" + strconv.Itoa(j.Attempt)
}

func attemptKey(msg *job.ExecutionMessage, j webhooks.Job) string {
	if msg != nil && strings.TrimSpace(msg.IdempotencyKey) != "" {
		return strings.TrimSpace(msg.IdempotencyKey)
	}
	return idempotencyKey(j)
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	switch typed := params[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func payloadParam(value any) ([]byte, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), typed...), nil
	case string:
		decoded, err := base64.StdEncoding.DecodeString(typed)
		if err != nil {
			return nil, fmt.Errorf("%w: payload: %v", ErrMalformedMessage, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: payload has type %T", ErrMalformedMessage, value)
	}
}

// intParam accepts the numeric shapes a JSON round trip can produce.
func intParam(value any) (int, error) {
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case int:
		return typed, nil
	case int32:
		return int(typed), nil
	case int64:
		return int(typed), nil
	case float64:
		return int(typed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, fmt.Errorf("%w: attempt: %v", ErrMalformedMessage, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: attempt has type %T", ErrMalformedMessage, value)
	}
}

func sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var (
	_ webhooks.Intake = (*Forwarder)(nil)
	_ worker.Hook     = (*LoggingHook)(nil)
)
