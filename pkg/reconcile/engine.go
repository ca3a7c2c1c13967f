package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// IdentityResolver resolves a provider-issued anonymous identity. When the
// identity has already been claimed by an authenticated account it returns
// that user id; otherwise it records the identity as pending and returns nil.
// The identity package provides the canonical implementation.
type IdentityResolver interface {
	ResolveOrPend(ctx context.Context, anonymousID string) (*uuid.UUID, error)
}

// PremiumRecalcFunc recomputes and persists a user's derived premium flag
// after a state change. The composing service wires this to the entitlement
// resolver and cache; the engine only knows when to call it.
type PremiumRecalcFunc func(ctx context.Context, userID uuid.UUID) error

// Engine applies canonical events to the subscription model. Safe for
// concurrent use: ordering correctness comes from the store's conditional
// update, not from serializing callers.
type Engine struct {
	store      SubscriptionStore
	identities IdentityResolver
	recalc     PremiumRecalcFunc
	log        *slog.Logger
}

// EngineOption configures optional engine dependencies.
type EngineOption func(*Engine)

// WithPremiumRecalc registers the premium-cache recomputation hook.
func WithPremiumRecalc(fn PremiumRecalcFunc) EngineOption {
	return func(e *Engine) { e.recalc = fn }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates the reconciliation engine. Panics on nil required
// dependencies to fail fast during initialization.
func NewEngine(store SubscriptionStore, identities IdentityResolver, opts ...EngineOption) *Engine {
	if store == nil {
		panic("reconcile: SubscriptionStore is required")
	}
	if identities == nil {
		panic("reconcile: IdentityResolver is required")
	}

	e := &Engine{
		store:      store,
		identities: identities,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reconciles one canonical event.
//
// Billing issues are logged and never change state; a grace-period policy is
// the host's concern. For everything else the flow is: look up the
// subscription, create it when absent (whatever the kind, so out-of-order
// delivery converges), otherwise transition it only when the event is newer
// than the last one applied. A stale or raced event reports superseded, which
// is a success.
func (e *Engine) Apply(ctx context.Context, ev *Event) (Result, error) {
	if ev.Kind == KindBillingIssue {
		e.log.WarnContext(ctx, "billing issue reported",
			slog.String("provider", string(ev.Provider)),
			slog.String("provider_sub_id", ev.ProviderSubscriptionID),
			slog.String("subject_id", ev.SubjectID),
		)
		return Result{Outcome: OutcomeLogged}, nil
	}

	for {
		sub, err := e.store.GetByProviderSubID(ctx, ev.Provider, ev.ProviderSubscriptionID)
		if errors.Is(err, ErrSubscriptionMissing) {
			result, err := e.createFromEvent(ctx, ev)
			if errors.Is(err, ErrSubscriptionExists) {
				// Concurrent delivery created the record first; re-read and
				// apply as an update.
				continue
			}
			return result, err
		}
		if err != nil {
			return Result{}, fmt.Errorf("lookup subscription: %w", err)
		}

		return e.applyToExisting(ctx, ev, sub)
	}
}

func (e *Engine) applyToExisting(ctx context.Context, ev *Event, sub *Subscription) (Result, error) {
	if !ev.OccurredAt.After(sub.LastEventAt) {
		return Result{Outcome: OutcomeSuperseded, Subscription: sub}, nil
	}

	// Terminal states never resurrect for a provider subscription id; a
	// re-subscribe arrives under a fresh id.
	if sub.IsTerminal() && ev.Kind.grants() {
		return Result{Outcome: OutcomeSuperseded, Subscription: sub}, nil
	}

	// Each kind writes only the fields it owns, so a transition applied from a
	// stale read cannot roll back a concurrent write to the other fields.
	tr := &Transition{
		Provider:      ev.Provider,
		ProviderSubID: ev.ProviderSubscriptionID,
		OccurredAt:    ev.OccurredAt,
	}
	switch ev.Kind {
	case KindPurchase, KindRenewal, KindPlanChange:
		// A purchase on a live record means the provider reused the id;
		// renewal semantics apply.
		tr.SetPeriodEnd = true
		tr.PeriodEnd = ev.PeriodEnd
	case KindCancellation:
		status := StatusCancelled
		at := ev.OccurredAt
		tr.Status = &status
		tr.CancelledAt = &at
	case KindExpiration:
		status := StatusExpired
		tr.Status = &status
	}

	updated, err := e.store.ApplyIfNewer(ctx, tr)
	if err != nil {
		return Result{}, fmt.Errorf("apply subscription transition: %w", err)
	}
	if updated == nil {
		// A concurrent delivery with a newer event won the conditional update.
		return Result{Outcome: OutcomeSuperseded, Subscription: sub}, nil
	}

	e.recalcOwner(ctx, updated.UserID)
	e.log.InfoContext(ctx, "subscription reconciled",
		slog.String("provider", string(ev.Provider)),
		slog.String("provider_sub_id", ev.ProviderSubscriptionID),
		slog.String("kind", string(ev.Kind)),
		slog.String("status", string(updated.Status)),
	)
	return Result{Outcome: OutcomeApplied, Subscription: updated}, nil
}

func (e *Engine) createFromEvent(ctx context.Context, ev *Event) (Result, error) {
	sub := &Subscription{
		Provider:         ev.Provider,
		ProviderSubID:    ev.ProviderSubscriptionID,
		SubjectID:        ev.SubjectID,
		Platform:         ev.Platform,
		Status:           StatusActive,
		CurrentPeriodEnd: ev.PeriodEnd,
		LastEventAt:      ev.OccurredAt,
	}
	// Even a cancellation or expiration creates the record when none exists:
	// the earlier purchase may still be in flight, and it must land as
	// superseded rather than resurrect the subscription.
	switch ev.Kind {
	case KindCancellation:
		at := ev.OccurredAt
		sub.Status = StatusCancelled
		sub.CancelledAt = &at
	case KindExpiration:
		sub.Status = StatusExpired
	}

	outcome := OutcomeCreated
	switch {
	case ev.AnonymousSubject:
		owner, err := e.identities.ResolveOrPend(ctx, ev.SubjectID)
		if err != nil {
			return Result{}, fmt.Errorf("resolve anonymous subject: %w", err)
		}
		if owner == nil {
			// Unattributed until the host links the identity; attributing to
			// the wrong user is worse than waiting.
			outcome = OutcomePendingLink
		} else {
			sub.UserID = owner
		}
	case ev.SubjectID != "":
		uid, err := uuid.Parse(ev.SubjectID)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q", ErrInvalidSubject, ev.SubjectID)
		}
		sub.UserID = &uid
	}

	if err := e.store.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrSubscriptionExists) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("create subscription: %w", err)
	}

	e.recalcOwner(ctx, sub.UserID)
	e.log.InfoContext(ctx, "subscription created",
		slog.String("provider", string(ev.Provider)),
		slog.String("provider_sub_id", ev.ProviderSubscriptionID),
		slog.String("kind", string(ev.Kind)),
		slog.String("outcome", string(outcome)),
	)
	return Result{Outcome: outcome, Subscription: sub}, nil
}

// recalcOwner refreshes the derived premium flag. Failures are logged, not
// returned: the cache is a read optimization and must never fail a write that
// already landed.
func (e *Engine) recalcOwner(ctx context.Context, userID *uuid.UUID) {
	if e.recalc == nil || userID == nil {
		return
	}
	if err := e.recalc(ctx, *userID); err != nil {
		e.log.ErrorContext(ctx, "premium recalculation failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
	}
}
