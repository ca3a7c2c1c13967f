package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LinkRecord tracks one provider-side anonymous purchaser identity. A record
// with a nil LinkedUserID is pending: a purchase arrived before the purchaser
// authenticated with the host.
type LinkRecord struct {
	ProviderAnonymousID string
	LinkedUserID        *uuid.UUID
	CreatedAt           time.Time
	LinkedAt            *time.Time
}

// Resolved reports whether the identity has been claimed by an account.
func (r *LinkRecord) Resolved() bool {
	return r.LinkedUserID != nil
}

// LinkStore persists link records, queryable by both sides of the mapping.
type LinkStore interface {
	// GetByAnonymousID returns the record for the anonymous identity, or
	// ErrLinkNotFound.
	GetByAnonymousID(ctx context.Context, anonymousID string) (*LinkRecord, error)

	// GetByUserID returns the record claimed by the user, or ErrLinkNotFound.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*LinkRecord, error)

	// Create inserts a new record; ErrLinkExists when the anonymous id is
	// already tracked.
	Create(ctx context.Context, record *LinkRecord) error

	// Save updates an existing record (used to resolve a pending link).
	Save(ctx context.Context, record *LinkRecord) error
}
