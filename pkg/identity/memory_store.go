package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLinkStore is an in-memory LinkStore for tests.
type MemoryLinkStore struct {
	mu      sync.Mutex
	records map[string]*LinkRecord
}

// NewMemoryLinkStore returns an empty in-memory link store.
func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{
		records: make(map[string]*LinkRecord),
	}
}

func (s *MemoryLinkStore) GetByAnonymousID(ctx context.Context, anonymousID string) (*LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[anonymousID]
	if !ok {
		return nil, ErrLinkNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryLinkStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.LinkedUserID != nil && *record.LinkedUserID == userID {
			copied := *record
			return &copied, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (s *MemoryLinkStore) Create(ctx context.Context, record *LinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ProviderAnonymousID]; exists {
		return ErrLinkExists
	}
	copied := *record
	s.records[record.ProviderAnonymousID] = &copied
	return nil
}

func (s *MemoryLinkStore) Save(ctx context.Context, record *LinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ProviderAnonymousID]; !exists {
		return ErrLinkNotFound
	}
	copied := *record
	s.records[record.ProviderAnonymousID] = &copied
	return nil
}
