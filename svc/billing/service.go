package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/access"
	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/eventstore"
	"github.com/dmitrymomot/billingkit/pkg/identity"
	"github.com/dmitrymomot/billingkit/pkg/reconcile"
	"github.com/dmitrymomot/billingkit/pkg/retry"
	"github.com/dmitrymomot/billingkit/pkg/webhookauth"
)

// Config holds the service-level settings.
type Config struct {
	Mode  entitlement.BillingMode
	Retry retry.Config
}

// Service wires the verification, storage, normalization, reconciliation,
// identity and entitlement pieces into the kit's public surface.
type Service struct {
	cfg         Config
	verifiers   *webhookauth.Registry
	events      eventstore.Store
	subs        reconcile.SubscriptionStore
	licenses    entitlement.LicenseStore
	normalizer  *reconcile.Normalizer
	engine      *reconcile.Engine
	linker      *identity.Linker
	coordinator *retry.Coordinator
	cache       *entitlement.PremiumCache
	log         *slog.Logger
	now         func() time.Time
}

// New assembles the billing service. Panics on nil required dependencies to
// fail fast during initialization.
func New(cfg Config, verifiers *webhookauth.Registry, events eventstore.Store,
	subs reconcile.SubscriptionStore, links identity.LinkStore,
	licenses entitlement.LicenseStore, opts ...Option,
) *Service {
	if verifiers == nil {
		panic("billing: webhookauth.Registry is required")
	}
	if events == nil {
		panic("billing: eventstore.Store is required")
	}
	if subs == nil {
		panic("billing: reconcile.SubscriptionStore is required")
	}
	if links == nil {
		panic("billing: identity.LinkStore is required")
	}
	if licenses == nil {
		panic("billing: entitlement.LicenseStore is required")
	}

	s := &Service{
		cfg:        cfg,
		verifiers:  verifiers,
		events:     events,
		subs:       subs,
		licenses:   licenses,
		normalizer: reconcile.NewNormalizer(),
		log:        slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log != nil {
		s.log = o.log
	}
	s.cache = o.cache

	s.linker = identity.NewLinker(links, subs,
		identity.WithPremiumRecalc(s.recomputePremium),
		identity.WithLogger(s.log),
	)
	s.engine = reconcile.NewEngine(subs, s.linker,
		reconcile.WithPremiumRecalc(s.recomputePremium),
		reconcile.WithLogger(s.log),
	)

	var coordOpts []retry.CoordinatorOption
	if o.leaseClient != nil {
		coordOpts = append(coordOpts, retry.WithLease(o.leaseClient))
	}
	coordOpts = append(coordOpts, retry.WithLogger(s.log))
	s.coordinator = retry.NewCoordinator(events, s, cfg.Retry, coordOpts...)

	if o.now != nil {
		s.now = o.now
	}
	return s
}

// HandleWebhook runs the ingestion pipeline for one provider notification.
//
// Returned errors are limited to the pre-storage boundary:
// webhookauth.ErrAuthenticationFailed for bad signatures,
// reconcile.ErrMalformedPayload for payloads failing schema extraction, and
// storage errors when the event could not be persisted. After a durable
// append the method always reports success; processing failures are written
// to the event's status instead.
func (s *Service) HandleWebhook(ctx context.Context, provider eventstore.Provider, rawBody []byte, signature string) error {
	if err := s.verifiers.Verify(ctx, provider, rawBody, signature); err != nil {
		s.log.WarnContext(ctx, "webhook rejected",
			slog.String("provider", string(provider)),
			slog.Any("error", err),
		)
		return err
	}

	meta, err := reconcile.ExtractMeta(provider, rawBody)
	if err != nil {
		return err
	}

	event := &eventstore.Event{
		Provider:          provider,
		EventType:         meta.EventType,
		ProviderEventID:   meta.ProviderEventID,
		ExternalSubjectID: meta.SubjectID,
		RawPayload:        rawBody,
	}
	id, err := s.events.Append(ctx, event)
	if errors.Is(err, eventstore.ErrDuplicateEvent) {
		// Provider redelivery of an event we already hold. The stored copy is
		// either processed or owned by the retry coordinator; acknowledge and
		// move on.
		s.log.DebugContext(ctx, "duplicate webhook delivery",
			slog.String("provider", string(provider)),
			slog.String("event_id", id.String()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store webhook event: %w", err)
	}

	// From here on failures are internal: the provider gets its 200.
	if err := s.Process(ctx, *event); err != nil {
		s.log.WarnContext(ctx, "webhook processing deferred",
			slog.String("provider", string(provider)),
			slog.String("event_id", id.String()),
			slog.Any("error", err),
		)
	}
	return nil
}

// Process normalizes and reconciles one stored event, recording the outcome
// on the event's status. Also the retry coordinator's Processor.
func (s *Service) Process(ctx context.Context, event eventstore.Event) error {
	canonical, err := s.normalizer.Normalize(&event)
	if err != nil {
		// Unknown types and malformed payloads stay failed until an operator
		// looks at them; retrying cannot make the mapping appear.
		s.markFailed(ctx, event.ID, err, false)
		return err
	}

	result, err := s.engine.Apply(ctx, canonical)
	if err != nil {
		s.markFailed(ctx, event.ID, err, isRetryable(err))
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.ID); err != nil && !errors.Is(err, eventstore.ErrAlreadyProcessed) {
		return fmt.Errorf("mark event processed: %w", err)
	}

	s.log.InfoContext(ctx, "webhook event processed",
		slog.String("event_id", event.ID.String()),
		slog.String("provider", string(event.Provider)),
		slog.String("event_type", event.EventType),
		slog.String("outcome", string(result.Outcome)),
	)
	return nil
}

// isRetryable separates infrastructure failures, which a sweep can heal, from
// semantic ones, which need operator action.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, reconcile.ErrInvalidSubject),
		errors.Is(err, identity.ErrLinkConflict):
		return false
	}
	return true
}

func (s *Service) markFailed(ctx context.Context, id uuid.UUID, cause error, retryable bool) {
	if err := s.events.MarkFailed(ctx, id, cause.Error(), retryable); err != nil {
		s.log.ErrorContext(ctx, "mark event failed errored",
			slog.String("event_id", id.String()),
			slog.Any("error", err),
		)
	}
}

// GetEntitlement answers the host's per-request premium question. The cached
// flag short-circuits the store reads when warm; a miss recomputes from the
// stores and refreshes the cache.
func (s *Service) GetEntitlement(ctx context.Context, userID uuid.UUID) (entitlement.Entitlement, error) {
	if s.cfg.Mode.GrantsUnconditionally() {
		return entitlement.Entitlement{IsPremium: true, Limits: entitlement.PremiumLimits}, nil
	}

	if s.cache != nil {
		premium, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.WarnContext(ctx, "premium cache read failed", slog.Any("error", err))
		}
		if ok {
			return entitlement.Entitlement{IsPremium: premium, Limits: entitlement.LimitsFor(premium)}, nil
		}
	}

	ent, err := s.resolve(ctx, userID)
	if err != nil {
		return entitlement.Entitlement{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, ent.IsPremium); err != nil {
			s.log.WarnContext(ctx, "premium cache write failed", slog.Any("error", err))
		}
	}
	return ent, nil
}

// DecideAccess gates one piece of content. Pure passthrough to the access
// package, present so hosts need only one dependency.
func (s *Service) DecideAccess(isAuthenticated, isPremiumUser, isContentPremium bool) access.Action {
	return access.Decide(isAuthenticated, isPremiumUser, isContentPremium)
}

// LinkAnonymousIdentity claims an anonymous purchaser identity for an
// authenticated account. Called from the host's login/registration flow,
// never from a webhook path.
func (s *Service) LinkAnonymousIdentity(ctx context.Context, anonymousID string, userID uuid.UUID) error {
	return s.linker.Link(ctx, anonymousID, userID)
}

// TriggerRetrySweep runs one operator-invoked sweep over failed and
// unprocessed events.
func (s *Service) TriggerRetrySweep(ctx context.Context) (retry.Report, error) {
	return s.coordinator.Sweep(ctx)
}

// resolve snapshots the user's grants and runs the pure resolver.
func (s *Service) resolve(ctx context.Context, userID uuid.UUID) (entitlement.Entitlement, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return entitlement.Entitlement{}, fmt.Errorf("list subscriptions: %w", err)
	}
	licenses, err := s.licenses.ListByUser(ctx, userID)
	if err != nil {
		return entitlement.Entitlement{}, fmt.Errorf("list licenses: %w", err)
	}

	grants := make([]entitlement.SubscriptionGrant, 0, len(subs))
	for i := range subs {
		grants = append(grants, subs[i].Grant())
	}
	licGrants := make([]entitlement.LicenseGrant, 0, len(licenses))
	for _, l := range licenses {
		licGrants = append(licGrants, l.Grant())
	}

	return entitlement.Resolve(s.cfg.Mode, grants, licGrants, s.now()), nil
}

// recomputePremium is the write-side hook the engine and linker call after a
// state change: resolve fresh, then correct the cache.
func (s *Service) recomputePremium(ctx context.Context, userID uuid.UUID) error {
	ent, err := s.resolve(ctx, userID)
	if err != nil {
		return err
	}
	if s.cache != nil {
		return s.cache.Set(ctx, userID, ent.IsPremium)
	}
	return nil
}
