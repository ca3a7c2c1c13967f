package entitlement

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryLicenseStore is an in-memory LicenseStore for tests and single-node
// deployments that keep licenses in configuration.
type MemoryLicenseStore struct {
	mu       sync.RWMutex
	licenses map[uuid.UUID]License
}

// NewMemoryLicenseStore returns an empty in-memory license store.
func NewMemoryLicenseStore() *MemoryLicenseStore {
	return &MemoryLicenseStore{
		licenses: make(map[uuid.UUID]License),
	}
}

func (s *MemoryLicenseStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []License
	for _, l := range s.licenses {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryLicenseStore) Save(ctx context.Context, license *License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.licenses[license.ID] = *license
	return nil
}
