package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySubscriptionStore keeps subscriptions in process. Used by tests and
// hosts without a database.
type MemorySubscriptionStore struct {
	mu    sync.RWMutex
	items map[string]Subscription
	order []string
	now   func() time.Time
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		items: map[string]Subscription{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemorySubscriptionStore) Create(_ context.Context, in CreateSubscriptionInput) (Subscription, error) {
	in = NormalizeSubscriptionInput(in)
	if err := ValidateSubscriptionInput(in); err != nil {
		return Subscription{}, err
	}
	secret := in.Secret
	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return Subscription{}, err
		}
		secret = generated
	}
	now := s.now()
	sub := Subscription{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		URL:         in.URL,
		Timeout:     in.Timeout,
		Headers:     cloneHeaders(in.Headers),
		Secret:      secret,
		Events:      append([]string(nil), in.Events...),
		Filter:      in.Filter,
		Status:      SubscriptionStatusActive,
		RetryPolicy: *in.RetryPolicy,
		RateLimit:   in.RateLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sub.ID] = sub
	s.order = append(s.order, sub.ID)
	return cloneSubscription(sub), nil
}

// Put stores sub as given, assigning an id when missing.
func (s *MemorySubscriptionStore) Put(sub Subscription) Subscription {
	if strings.TrimSpace(sub.ID) == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = SubscriptionStatusActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[sub.ID]; !exists {
		s.order = append(s.order, sub.ID)
	}
	s.items[sub.ID] = cloneSubscription(sub)
	return cloneSubscription(sub)
}

func (s *MemorySubscriptionStore) FindBySubscribedEvent(_ context.Context, event string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Subscription{}
	for _, id := range s.order {
		sub := s.items[id]
		if !sub.Active() || !sub.SubscribedTo(event) {
			continue
		}
		out = append(out, cloneSubscription(sub))
	}
	return out, nil
}

func (s *MemorySubscriptionStore) Get(_ context.Context, id string) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return Subscription{}, NotFoundError(id)
	}
	return cloneSubscription(sub), nil
}

func (s *MemorySubscriptionStore) UpdateStatistics(_ context.Context, id string, patch StatisticsPatch) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return Subscription{}, NotFoundError(id)
	}
	sub.Statistics = patch.Apply(sub.Statistics)
	sub.UpdatedAt = s.now()
	s.items[sub.ID] = sub
	return cloneSubscription(sub), nil
}

func (s *MemorySubscriptionStore) Deactivate(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return NotFoundError(id)
	}
	sub.Status = SubscriptionStatusFailed
	sub.StatusNote = strings.TrimSpace(reason)
	sub.UpdatedAt = s.now()
	s.items[sub.ID] = sub
	return nil
}

func (s *MemorySubscriptionStore) Reactivate(_ context.Context, id string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return Subscription{}, NotFoundError(id)
	}
	sub.Status = SubscriptionStatusActive
	sub.StatusNote = ""
	sub.UpdatedAt = s.now()
	s.items[sub.ID] = sub
	return cloneSubscription(sub), nil
}

func (s *MemorySubscriptionStore) RevealSecret(ctx context.Context, id string) (string, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return sub.Secret, nil
}

// MemoryAuditStore appends audit entries in memory, newest last.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Record(_ context.Context, entry AuditEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Metadata = cloneFields(entry.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns matching entries newest first.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) (AuditPage, error) {
	page, perPage := NormalizePage(filter.Page, filter.PerPage)
	s.mu.RLock()
	matched := make([]AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if id := strings.TrimSpace(filter.SubscriptionID); id != "" && entry.SubscriptionID != id {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		matched = append(matched, entry)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	out := AuditPage{Page: page, PerPage: perPage, Total: len(matched)}
	start := (page - 1) * perPage
	if start >= len(matched) {
		out.Items = []AuditEntry{}
		return out, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	out.Items = append([]AuditEntry(nil), matched[start:end]...)
	return out, nil
}

// Entries returns every recorded entry in insertion order.
func (s *MemoryAuditStore) Entries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.entries...)
}

// NormalizePage clamps pagination to page >= 1 and 1 <= perPage <= 200.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	if perPage > 200 {
		perPage = 200
	}
	return page, perPage
}

func cloneSubscription(sub Subscription) Subscription {
	out := sub
	out.Headers = cloneHeaders(sub.Headers)
	out.Events = append([]string(nil), sub.Events...)
	out.Filter = Filter{
		ResourceIDs: append([]string(nil), sub.Filter.ResourceIDs...),
		Departments: append([]string(nil), sub.Filter.Departments...),
		Locations:   append([]string(nil), sub.Filter.Locations...),
	}
	if len(sub.Filter.Conditions) > 0 {
		out.Filter.Conditions = cloneFields(sub.Filter.Conditions)
	}
	return out
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}
