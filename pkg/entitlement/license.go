package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// License is a non-recurring, manually issued premium grant. Licenses are
// issued out-of-band (license-key deployments, support goodwill grants) and
// never flow through the webhook pipeline.
type License struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ValidUntil *time.Time // nil = perpetual
	CreatedAt  time.Time
}

// ValidAt reports whether the license grants premium at the given instant.
// The expiry boundary is inclusive.
func (l License) ValidAt(now time.Time) bool {
	return l.ValidUntil == nil || !l.ValidUntil.Before(now)
}

// Grant converts the license into the resolver's view type.
func (l License) Grant() LicenseGrant {
	return LicenseGrant{ValidUntil: l.ValidUntil}
}

// LicenseStore persists licenses, queryable by owning user.
type LicenseStore interface {
	// ListByUser returns all licenses owned by the user, valid or not.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error)

	// Save creates or updates a license by ID.
	Save(ctx context.Context, license *License) error
}
