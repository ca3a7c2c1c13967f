package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// Transition is the kind-scoped change set ApplyIfNewer writes. Fields a
// transition does not own stay untouched in the stored record: a cancellation
// racing a just-applied renewal must not roll back the renewal's period end.
type Transition struct {
	Provider      eventstore.Provider
	ProviderSubID string
	// OccurredAt becomes the stored LastEventAt; the write happens only when
	// it is strictly newer than the stored value.
	OccurredAt   time.Time
	Status       *SubscriptionStatus // nil leaves the status unchanged
	PeriodEnd    *time.Time          // written only when SetPeriodEnd
	SetPeriodEnd bool                // grant kinds own the period end, terminal kinds do not
	CancelledAt  *time.Time          // nil leaves the cancellation timestamp unchanged
}

// SubscriptionStore persists subscriptions, queryable by the two unique keys
// the engine needs: (provider, providerSubID) and the owning user.
type SubscriptionStore interface {
	// GetByProviderSubID returns the subscription for a provider subscription
	// id, or ErrSubscriptionMissing.
	GetByProviderSubID(ctx context.Context, provider eventstore.Provider, providerSubID string) (*Subscription, error)

	// ListByUser returns all subscriptions owned by the user, any status.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error)

	// Create inserts a new subscription. Returns ErrSubscriptionExists when the
	// (provider, providerSubID) pair is already present, which callers treat as
	// a concurrent create and re-read.
	Create(ctx context.Context, sub *Subscription) error

	// ApplyIfNewer applies the transition only if the stored LastEventAt is
	// still older than tr.OccurredAt, returning the updated record or nil when
	// a newer event already holds the row. This is the
	// compare-and-conditionally-update that keeps two concurrent deliveries
	// for the same subscription from losing an update.
	ApplyIfNewer(ctx context.Context, tr *Transition) (*Subscription, error)

	// AttributeUser assigns ownership of every unattributed subscription whose
	// subject matches the anonymous identity, returning how many records were
	// claimed. Called by the identity linker when an anonymous purchaser is
	// resolved.
	AttributeUser(ctx context.Context, subjectID string, userID uuid.UUID) (int, error)
}
