package webhooks

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-oee-hooks/core"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	perSecond float64
	limiter   *rate.Limiter
}

// limiterSet enforces Subscription.RateLimit per subscriber.
type limiterSet struct {
	mu    sync.Mutex
	items map[string]limiterEntry
}

func newLimiterSet() *limiterSet {
	return &limiterSet{items: map[string]limiterEntry{}}
}

// Reserve takes one token for sub and returns how long the caller must wait
// before sending. Zero means send now.
func (l *limiterSet) Reserve(sub core.Subscription, now time.Time) time.Duration {
	if l == nil || sub.RateLimit <= 0 {
		return 0
	}
	id := strings.TrimSpace(sub.ID)
	l.mu.Lock()
	entry, ok := l.items[id]
	if !ok || entry.perSecond != sub.RateLimit {
		burst := int(math.Ceil(sub.RateLimit))
		if burst < 1 {
			burst = 1
		}
		entry = limiterEntry{
			perSecond: sub.RateLimit,
			limiter:   rate.NewLimiter(rate.Limit(sub.RateLimit), burst),
		}
		l.items[id] = entry
	}
	l.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return 0
	}
	return reservation.DelayFrom(now)
}
