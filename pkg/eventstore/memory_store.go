package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests. All operations are guarded by
// a single mutex, which also gives ClaimRetryable its atomicity.
type MemoryStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event
	// dedupe index keyed by provider + provider-native event id
	byProviderEvent map[string]uuid.UUID
}

// NewMemoryStore returns an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:          make(map[uuid.UUID]*Event),
		byProviderEvent: make(map[string]uuid.UUID),
	}
}

func dedupeKey(provider Provider, providerEventID string) string {
	return string(provider) + "|" + providerEventID
}

func (s *MemoryStore) Append(ctx context.Context, event *Event) (uuid.UUID, error) {
	if !event.Provider.Valid() {
		return uuid.Nil, ErrInvalidProvider
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ProviderEventID != "" {
		if existing, ok := s.byProviderEvent[dedupeKey(event.Provider, event.ProviderEventID)]; ok {
			return existing, ErrDuplicateEvent
		}
	}

	stored := *event
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = time.Now().UTC()
	}
	stored.Status = StatusUnprocessed
	stored.RawPayload = slices.Clone(event.RawPayload)

	s.events[stored.ID] = &stored
	if stored.ProviderEventID != "" {
		s.byProviderEvent[dedupeKey(stored.Provider, stored.ProviderEventID)] = stored.ID
	}
	event.ID = stored.ID
	event.ReceivedAt = stored.ReceivedAt
	event.Status = stored.Status

	return stored.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	copied := *event
	copied.RawPayload = slices.Clone(event.RawPayload)
	return &copied, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if event.Status == StatusProcessed {
		return ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	event.Status = StatusProcessed
	event.ProcessedAt = &now
	event.FailureReason = ""
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if event.Status == StatusProcessed {
		return ErrAlreadyProcessed
	}

	event.Status = StatusFailed
	event.FailureReason = reason
	event.Retryable = retryable
	event.Attempts++
	return nil
}

func (s *MemoryStore) ClaimRetryable(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	staleCutoff := now.Add(-staleAfter)

	var claimed []Event
	for _, event := range s.events {
		if len(claimed) >= limit {
			break
		}
		eligible := event.Status == StatusUnprocessed ||
			(event.Status == StatusFailed && event.Retryable && event.Attempts < maxAttempts) ||
			(event.Status == StatusRetrying && event.ClaimedAt != nil && !event.ClaimedAt.After(staleCutoff))
		if !eligible {
			continue
		}
		event.Status = StatusRetrying
		at := now
		event.ClaimedAt = &at
		copied := *event
		copied.RawPayload = slices.Clone(event.RawPayload)
		claimed = append(claimed, copied)
	}
	return claimed, nil
}
