package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// MemorySubscriptionStore is an in-memory SubscriptionStore for tests. The
// single mutex makes Create and ApplyIfNewer atomic, mirroring the row-level
// guarantees of the postgres implementation.
type MemorySubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]*Subscription // keyed by provider|providerSubID
}

// NewMemorySubscriptionStore returns an empty in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		subs: make(map[string]*Subscription),
	}
}

func subKey(provider eventstore.Provider, providerSubID string) string {
	return string(provider) + "|" + providerSubID
}

func (s *MemorySubscriptionStore) GetByProviderSubID(ctx context.Context, provider eventstore.Provider, providerSubID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[subKey(provider, providerSubID)]
	if !ok {
		return nil, ErrSubscriptionMissing
	}
	copied := *sub
	return &copied, nil
}

func (s *MemorySubscriptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.UserID != nil && *sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *MemorySubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subKey(sub.Provider, sub.ProviderSubID)
	if _, exists := s.subs[key]; exists {
		return ErrSubscriptionExists
	}

	stored := *sub
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.subs[key] = &stored
	sub.ID = stored.ID
	sub.CreatedAt = stored.CreatedAt
	sub.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemorySubscriptionStore) ApplyIfNewer(ctx context.Context, tr *Transition) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subs[subKey(tr.Provider, tr.ProviderSubID)]
	if !ok {
		return nil, ErrSubscriptionMissing
	}
	if !stored.LastEventAt.Before(tr.OccurredAt) {
		return nil, nil
	}

	if tr.Status != nil {
		stored.Status = *tr.Status
	}
	if tr.SetPeriodEnd {
		stored.CurrentPeriodEnd = tr.PeriodEnd
	}
	if tr.CancelledAt != nil {
		stored.CancelledAt = tr.CancelledAt
	}
	stored.LastEventAt = tr.OccurredAt
	stored.UpdatedAt = time.Now().UTC()

	copied := *stored
	return &copied, nil
}

func (s *MemorySubscriptionStore) AttributeUser(ctx context.Context, subjectID string, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sub := range s.subs {
		if sub.UserID == nil && sub.SubjectID == subjectID {
			owner := userID
			sub.UserID = &owner
			sub.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}
