package webhooks

// Snapshot is a read-only view of the dispatcher for monitoring.
type Snapshot struct {
	QueueLength      int    `json:"queue_length"`
	InFlight         int    `json:"in_flight"`
	MaxConcurrent    int    `json:"max_concurrent"`
	PeakInFlight     int    `json:"peak_in_flight"`
	ScheduledRetries int    `json:"scheduled_retries"`
	Dispatched       uint64 `json:"dispatched"`
	Succeeded        uint64 `json:"succeeded"`
	Retried          uint64 `json:"retried"`
	Failed           uint64 `json:"failed"`
	Throttled        uint64 `json:"throttled"`
	Dropped          uint64 `json:"dropped"`
	Closed           bool   `json:"closed"`
}

func (d *Dispatcher) Snapshot() Snapshot {
	if d == nil {
		return Snapshot{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		QueueLength:      d.queue.Len(),
		InFlight:         d.inFlight,
		MaxConcurrent:    d.config.MaxConcurrent,
		PeakInFlight:     d.peakInFlight,
		ScheduledRetries: len(d.retries),
		Dispatched:       d.counters.dispatched,
		Succeeded:        d.counters.succeeded,
		Retried:          d.counters.retried,
		Failed:           d.counters.failed,
		Throttled:        d.counters.throttled,
		Dropped:          d.counters.dropped,
		Closed:           d.closed,
	}
}
