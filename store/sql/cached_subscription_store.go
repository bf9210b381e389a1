package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-oee-hooks/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "oee-hooks::subscriptions::v1"

// CachedSubscriptionStore fronts a registry with a read-through cache for the
// two hot reads: event fan-out lookups and per-attempt Get. Every write made
// through it invalidates the affected keys.
type CachedSubscriptionStore struct {
	base  core.SubscriptionRegistry
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base core.SubscriptionRegistry,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// EventCacheKey is oee-hooks::subscriptions::v1::event::<event>, path escaped.
func EventCacheKey(event string) string {
	return strings.Join([]string{subscriptionCacheKeyPrefix, "event", url.PathEscape(strings.TrimSpace(event))}, "::")
}

// SubscriptionCacheKey is oee-hooks::subscriptions::v1::id::<id>, path escaped.
func SubscriptionCacheKey(id string) string {
	return strings.Join([]string{subscriptionCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
}

func (s *CachedSubscriptionStore) FindBySubscribedEvent(ctx context.Context, event string) ([]core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	subs, err := repositorycache.GetOrFetch(ctx, s.cache, EventCacheKey(event), func(ctx context.Context) ([]core.Subscription, error) {
		return s.base.FindBySubscribedEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, cloneSubscription(sub))
	}
	return out, nil
}

func (s *CachedSubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	sub, err := repositorycache.GetOrFetch(ctx, s.cache, SubscriptionCacheKey(id), func(ctx context.Context) (core.Subscription, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return cloneSubscription(sub), nil
}

func (s *CachedSubscriptionStore) UpdateStatistics(ctx context.Context, id string, patch core.StatisticsPatch) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	updated, err := s.base.UpdateStatistics(ctx, id, patch)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, id, updated.Events); err != nil {
		return core.Subscription{}, err
	}
	return updated, nil
}

func (s *CachedSubscriptionStore) Deactivate(ctx context.Context, id string, reason string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.Deactivate(ctx, id, reason); err != nil {
		return err
	}
	return s.invalidate(ctx, id, core.KnownEvents())
}

func (s *CachedSubscriptionStore) Create(ctx context.Context, in core.CreateSubscriptionInput) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, created.ID, created.Events); err != nil {
		return core.Subscription{}, err
	}
	return created, nil
}

func (s *CachedSubscriptionStore) Reactivate(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	sub, err := s.base.Reactivate(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, id, core.KnownEvents()); err != nil {
		return core.Subscription{}, err
	}
	return sub, nil
}

// RevealSecret always reads through to the base store.
func (s *CachedSubscriptionStore) RevealSecret(ctx context.Context, id string) (string, error) {
	if s == nil || s.base == nil {
		return "", fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.RevealSecret(ctx, id)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, id string, events []string) error {
	if err := s.cache.Delete(ctx, SubscriptionCacheKey(id)); err != nil {
		return err
	}
	for _, event := range events {
		if err := s.cache.Delete(ctx, EventCacheKey(event)); err != nil {
			return err
		}
	}
	return nil
}

func cloneSubscription(sub core.Subscription) core.Subscription {
	out := sub
	out.Headers = copyStringMap(sub.Headers)
	out.Events = append([]string{}, sub.Events...)
	out.Statistics.LastSuccessAt = cloneTimePointer(sub.Statistics.LastSuccessAt)
	out.Statistics.LastFailureAt = cloneTimePointer(sub.Statistics.LastFailureAt)
	return out
}
