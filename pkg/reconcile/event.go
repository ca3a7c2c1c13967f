package reconcile

import (
	"time"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// Kind is the canonical, provider-agnostic classification of a billing event.
type Kind string

const (
	KindPurchase     Kind = "purchase"
	KindRenewal      Kind = "renewal"
	KindPlanChange   Kind = "plan_change"
	KindCancellation Kind = "cancellation"
	KindExpiration   Kind = "expiration"
	KindBillingIssue Kind = "billing_issue"
)

// grants reports whether the kind represents (or refreshes) an active grant.
func (k Kind) grants() bool {
	return k == KindPurchase || k == KindRenewal || k == KindPlanChange
}

// Event is the canonical representation of one billing occurrence,
// post-normalization. Everything downstream of the normalizer works only with
// this shape.
type Event struct {
	Kind                   Kind
	Provider               eventstore.Provider
	ProviderSubscriptionID string
	SubjectID              string // provider-side purchaser identity
	OccurredAt             time.Time
	PeriodEnd              *time.Time // nil = provider manages expiry out-of-band
	Platform               Platform
	AnonymousSubject       bool // SubjectID is a provider-issued anonymous identity
}

// Outcome classifies the result of applying a canonical event.
type Outcome string

const (
	// OutcomeCreated means a new subscription record was created.
	OutcomeCreated Outcome = "created"
	// OutcomeApplied means an existing subscription transitioned.
	OutcomeApplied Outcome = "applied"
	// OutcomeSuperseded means a later-or-equal event already captured this
	// effect. A success, not a failure: the stored event is still marked
	// processed.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomePendingLink means the subscription was created for an anonymous
	// purchaser and waits for the identity linker before it is attributed.
	OutcomePendingLink Outcome = "pending_link"
	// OutcomeLogged means the event carries no state transition (billing
	// issues) and was recorded in the log only.
	OutcomeLogged Outcome = "logged"
)

// Result is returned by Engine.Apply.
type Result struct {
	Outcome      Outcome
	Subscription *Subscription // nil for OutcomeLogged
}
