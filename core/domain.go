package core

import (
	"strings"
	"time"
)

const (
	EventMachineStatusChanged  = "machine.status_changed"
	EventMachineCreated        = "machine.created"
	EventMachineUpdated        = "machine.updated"
	EventMachineDeleted        = "machine.deleted"
	EventProductionStarted     = "production.started"
	EventProductionCompleted   = "production.completed"
	EventProductionUpdated     = "production.updated"
	EventOEEThresholdCrossed   = "oee.threshold_crossed"
	EventOEECalculated         = "oee.calculated"
	EventDowntimeStarted       = "downtime.started"
	EventDowntimeEnded         = "downtime.ended"
	EventQualityDefectRecorded = "quality.defect_recorded"
	EventShiftStarted          = "shift.started"
	EventShiftEnded            = "shift.ended"
	EventMaintenanceScheduled  = "maintenance.scheduled"
	EventMaintenanceCompleted  = "maintenance.completed"
	EventAlertTriggered        = "alert.triggered"
)

var knownEvents = map[string]struct{}{
	EventMachineStatusChanged:  {},
	EventMachineCreated:        {},
	EventMachineUpdated:        {},
	EventMachineDeleted:        {},
	EventProductionStarted:     {},
	EventProductionCompleted:   {},
	EventProductionUpdated:     {},
	EventOEEThresholdCrossed:   {},
	EventOEECalculated:         {},
	EventDowntimeStarted:       {},
	EventDowntimeEnded:         {},
	EventQualityDefectRecorded: {},
	EventShiftStarted:          {},
	EventShiftEnded:            {},
	EventMaintenanceScheduled:  {},
	EventMaintenanceCompleted:  {},
	EventAlertTriggered:        {},
}

// KnownEvent reports whether name is an event the monitoring application raises.
func KnownEvent(name string) bool {
	_, ok := knownEvents[strings.TrimSpace(name)]
	return ok
}

// KnownEvents returns the registered event names in no particular order.
func KnownEvents() []string {
	out := make([]string, 0, len(knownEvents))
	for name := range knownEvents {
		out = append(out, name)
	}
	return out
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusFailed   SubscriptionStatus = "failed"
)

type DeliveryOutcome string

const (
	DeliveryOutcomeSuccess DeliveryOutcome = "success"
	DeliveryOutcomeRetry   DeliveryOutcome = "retry"
	DeliveryOutcomeFailed  DeliveryOutcome = "failed"
)

const (
	DefaultSubscriptionTimeout = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultInitialDelay        = time.Second
	DefaultBackoffMultiplier   = 2.0
	ErrorSummaryLimit          = 500
)

// Filter is an allow-list per dimension. An empty dimension matches everything.
type Filter struct {
	ResourceIDs []string       `json:"resource_ids,omitempty"`
	Departments []string       `json:"departments,omitempty"`
	Locations   []string       `json:"locations,omitempty"`
	Conditions  map[string]any `json:"conditions,omitempty"`
}

func (f Filter) Empty() bool {
	return len(f.ResourceIDs) == 0 &&
		len(f.Departments) == 0 &&
		len(f.Locations) == 0 &&
		len(f.Conditions) == 0
}

type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries"`
	InitialDelay      time.Duration `json:"initial_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// MaxAttempts is the total number of tries a delivery job may make.
func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

type Statistics struct {
	TotalSent        int        `json:"total_sent"`
	TotalSuccess     int        `json:"total_success"`
	TotalFailed      int        `json:"total_failed"`
	LastSuccessAt    *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt    *time.Time `json:"last_failure_at,omitempty"`
	LastErrorSummary string     `json:"last_error_summary,omitempty"`
}

// FailureRatio is TotalFailed / TotalSent, zero when nothing was sent.
func (s Statistics) FailureRatio() float64 {
	if s.TotalSent <= 0 {
		return 0
	}
	return float64(s.TotalFailed) / float64(s.TotalSent)
}

type Subscription struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url"`
	Timeout     time.Duration      `json:"timeout"`
	Headers     map[string]string  `json:"headers,omitempty"`
	Secret      string             `json:"-"`
	Events      []string           `json:"events"`
	Filter      Filter             `json:"filter"`
	Status      SubscriptionStatus `json:"status"`
	StatusNote  string             `json:"status_note,omitempty"`
	RetryPolicy RetryPolicy        `json:"retry_policy"`

	// RateLimit caps deliveries per second to this subscriber. Zero is unlimited.
	RateLimit  float64    `json:"rate_limit,omitempty"`
	Statistics Statistics `json:"statistics"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive
}

func (s Subscription) SubscribedTo(event string) bool {
	event = strings.TrimSpace(event)
	for _, candidate := range s.Events {
		if strings.TrimSpace(candidate) == event {
			return true
		}
	}
	return false
}

type CreateSubscriptionInput struct {
	Name        string
	Description string
	URL         string
	Timeout     time.Duration
	Headers     map[string]string
	Secret      string
	Events      []string
	Filter      Filter
	RetryPolicy *RetryPolicy
	RateLimit   float64
}

// StatisticsPatch carries counter deltas and timestamps applied atomically by the store.
type StatisticsPatch struct {
	SentDelta        int
	SuccessDelta     int
	FailedDelta      int
	LastSuccessAt    *time.Time
	LastFailureAt    *time.Time
	LastErrorSummary *string
}

func (p StatisticsPatch) Apply(stats Statistics) Statistics {
	out := stats
	out.TotalSent += p.SentDelta
	out.TotalSuccess += p.SuccessDelta
	out.TotalFailed += p.FailedDelta
	if p.LastSuccessAt != nil {
		value := p.LastSuccessAt.UTC()
		out.LastSuccessAt = &value
	}
	if p.LastFailureAt != nil {
		value := p.LastFailureAt.UTC()
		out.LastFailureAt = &value
	}
	if p.LastErrorSummary != nil {
		out.LastErrorSummary = TruncateSummary(*p.LastErrorSummary, ErrorSummaryLimit)
	}
	return out
}

type Event struct {
	Name      string
	Data      any
	Timestamp time.Time
}

type AuditEntry struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	JobID          string          `json:"job_id"`
	Event          string          `json:"event"`
	Outcome        DeliveryOutcome `json:"outcome"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
	StatusCode     int             `json:"status_code,omitempty"`
	DurationMS     int64           `json:"duration_ms"`
	Error          string          `json:"error,omitempty"`
	Message        string          `json:"message"`
	NextAttemptAt  *time.Time      `json:"next_attempt_at,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AuditFilter struct {
	SubscriptionID string
	Outcome        DeliveryOutcome
	Page           int
	PerPage        int
}

type AuditPage struct {
	Items   []AuditEntry
	Page    int
	PerPage int
	Total   int
}

// TruncateSummary cuts value to at most limit runes.
func TruncateSummary(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
