package webhooks

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen marks an attempt skipped because the subscriber's breaker is open.
var ErrCircuitOpen = errors.New("webhooks: circuit open for subscription")

type CircuitBreaker interface {
	Execute(fn func() error) error
	State() string
}

type noopBreaker struct{}

func (noopBreaker) Execute(fn func() error) error { return fn() }

func (noopBreaker) State() string { return "disabled" }

type gobreakerWrapper struct {
	cb *gobreaker.CircuitBreaker
}

func (g *gobreakerWrapper) Execute(fn func() error) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (g *gobreakerWrapper) State() string {
	return g.cb.State().String()
}

// breakerSet keeps one breaker per subscription id.
type breakerSet struct {
	cfg           core.BreakerConfig
	onStateChange func(subscriptionID string, from, to string)

	mu    sync.Mutex
	items map[string]CircuitBreaker
}

func newBreakerSet(cfg core.BreakerConfig, onStateChange func(string, string, string)) *breakerSet {
	return &breakerSet{
		cfg:           cfg,
		onStateChange: onStateChange,
		items:         map[string]CircuitBreaker{},
	}
}

func (b *breakerSet) For(subscriptionID string) CircuitBreaker {
	if b == nil || !b.cfg.Enabled {
		return noopBreaker{}
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.items[subscriptionID]; ok {
		return existing
	}
	threshold := b.cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := b.cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	breaker := &gobreakerWrapper{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        subscriptionID,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if b.onStateChange != nil {
				b.onStateChange(name, from.String(), to.String())
			}
		},
	})}
	b.items[subscriptionID] = breaker
	return breaker
}

// Forget drops the breaker of a subscription, e.g. after manual reactivation.
func (b *breakerSet) Forget(subscriptionID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.items, strings.TrimSpace(subscriptionID))
	b.mu.Unlock()
}
