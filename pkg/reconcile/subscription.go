package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// SubscriptionStatus is the canonical lifecycle state of a subscription.
// Cancelled and expired are terminal for a given provider subscription id.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// Platform records where the subscription was purchased.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Subscription is the canonical representation of a recurring premium grant.
// Records are never deleted; terminal states are kept for audit.
type Subscription struct {
	ID            uuid.UUID
	UserID        *uuid.UUID // nil until the identity linker resolves an anonymous purchaser
	Provider      eventstore.Provider
	ProviderSubID string // unique per provider
	SubjectID     string // provider-side purchaser identity, kept for anonymous reattribution
	Platform      Platform
	Status        SubscriptionStatus
	// CurrentPeriodEnd is nil when the provider manages expiry out-of-band
	// (aggregator-owned subscriptions).
	CurrentPeriodEnd *time.Time
	// LastEventAt is the occurredAt of the most recent event applied. The
	// engine's ordering invariant compares against this, never against arrival
	// order.
	LastEventAt time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsTerminal reports whether the subscription reached a final state for its
// provider subscription id.
func (s *Subscription) IsTerminal() bool {
	return s.Status == StatusCancelled || s.Status == StatusExpired
}

// Grant converts the subscription into the entitlement resolver's view type.
func (s *Subscription) Grant() entitlement.SubscriptionGrant {
	return entitlement.SubscriptionGrant{
		Active:    s.IsActive(),
		PeriodEnd: s.CurrentPeriodEnd,
	}
}
