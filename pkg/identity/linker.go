package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SubscriptionAttributor reassigns ownership of subscriptions created while
// their purchaser was anonymous. The reconcile package's subscription stores
// satisfy this.
type SubscriptionAttributor interface {
	AttributeUser(ctx context.Context, subjectID string, userID uuid.UUID) (int, error)
}

// PremiumRecalcFunc mirrors the reconcile package's hook: called after a
// successful link so the newly attributed user's cached premium flag reflects
// the subscriptions they just gained.
type PremiumRecalcFunc func(ctx context.Context, userID uuid.UUID) error

// Linker enforces the one-to-one anonymous-identity mapping.
type Linker struct {
	store  LinkStore
	subs   SubscriptionAttributor
	recalc PremiumRecalcFunc
	log    *slog.Logger
}

// LinkerOption configures optional linker dependencies.
type LinkerOption func(*Linker)

// WithPremiumRecalc registers the premium-cache recomputation hook.
func WithPremiumRecalc(fn PremiumRecalcFunc) LinkerOption {
	return func(l *Linker) { l.recalc = fn }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) LinkerOption {
	return func(l *Linker) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLinker creates the identity linker. Panics on nil required dependencies
// to fail fast during initialization.
func NewLinker(store LinkStore, subs SubscriptionAttributor, opts ...LinkerOption) *Linker {
	if store == nil {
		panic("identity: LinkStore is required")
	}
	if subs == nil {
		panic("identity: SubscriptionAttributor is required")
	}

	l := &Linker{
		store: store,
		subs:  subs,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Link claims an anonymous identity for an authenticated account.
//
// Rules, in order: an unknown identity is created and linked immediately; an
// identity already linked to the same user is an idempotent success; an
// identity linked to a different user, or a user who already holds a
// different identity, is ErrLinkConflict. Conflicts are never silently
// reassigned. On success, subscriptions parked under the anonymous identity
// are reattributed and the user's premium flag is recomputed.
func (l *Linker) Link(ctx context.Context, anonymousID string, userID uuid.UUID) error {
	if anonymousID == "" {
		return fmt.Errorf("%w: empty anonymous id", ErrLinkConflict)
	}

	record, err := l.store.GetByAnonymousID(ctx, anonymousID)
	switch {
	case errors.Is(err, ErrLinkNotFound):
		record = nil
	case err != nil:
		return fmt.Errorf("lookup anonymous link: %w", err)
	}

	if record != nil && record.Resolved() {
		if *record.LinkedUserID == userID {
			return nil
		}
		return fmt.Errorf("%w: identity already linked to another account", ErrLinkConflict)
	}

	// Reverse direction: the user must not already hold a different identity.
	existing, err := l.store.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, ErrLinkNotFound):
	case err != nil:
		return fmt.Errorf("lookup user link: %w", err)
	case existing.ProviderAnonymousID != anonymousID:
		return fmt.Errorf("%w: account already linked to another identity", ErrLinkConflict)
	}

	now := time.Now().UTC()
	owner := userID
	if record == nil {
		record = &LinkRecord{
			ProviderAnonymousID: anonymousID,
			LinkedUserID:        &owner,
			CreatedAt:           now,
			LinkedAt:            &now,
		}
		if err := l.store.Create(ctx, record); err != nil {
			if errors.Is(err, ErrLinkExists) {
				// Raced with a concurrent link; re-run the rules once.
				return l.Link(ctx, anonymousID, userID)
			}
			return fmt.Errorf("create anonymous link: %w", err)
		}
	} else {
		record.LinkedUserID = &owner
		record.LinkedAt = &now
		if err := l.store.Save(ctx, record); err != nil {
			return fmt.Errorf("resolve anonymous link: %w", err)
		}
	}

	claimed, err := l.subs.AttributeUser(ctx, anonymousID, userID)
	if err != nil {
		return fmt.Errorf("attribute subscriptions: %w", err)
	}
	l.log.InfoContext(ctx, "anonymous identity linked",
		slog.String("anonymous_id", anonymousID),
		slog.String("user_id", userID.String()),
		slog.Int("subscriptions_claimed", claimed),
	)

	if l.recalc != nil {
		if err := l.recalc(ctx, userID); err != nil {
			l.log.ErrorContext(ctx, "premium recalculation failed after link",
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// ResolveOrPend implements the reconcile engine's IdentityResolver: it
// returns the linked user when the identity is already claimed, and otherwise
// records the identity as pending so the eventual Link call finds it.
func (l *Linker) ResolveOrPend(ctx context.Context, anonymousID string) (*uuid.UUID, error) {
	record, err := l.store.GetByAnonymousID(ctx, anonymousID)
	switch {
	case errors.Is(err, ErrLinkNotFound):
	case err != nil:
		return nil, fmt.Errorf("lookup anonymous link: %w", err)
	default:
		return record.LinkedUserID, nil
	}

	pending := &LinkRecord{
		ProviderAnonymousID: anonymousID,
		CreatedAt:           time.Now().UTC(),
	}
	if err := l.store.Create(ctx, pending); err != nil && !errors.Is(err, ErrLinkExists) {
		return nil, fmt.Errorf("create pending link: %w", err)
	}
	return nil, nil
}
