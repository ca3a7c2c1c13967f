// Package reconcile translates provider-native webhook events into a canonical
// billing vocabulary and applies them to the subscription model with
// idempotent, causally ordered semantics.
//
// # Normalization
//
// Each provider speaks its own dialect (the IAP aggregator sends
// "INITIAL_PURCHASE", the card processor "subscription.created", the reseller
// "sale"). Normalizers map those to six canonical kinds: purchase, renewal,
// plan change, cancellation, expiration and billing issue. An unrecognized
// type is a NormalizationError, not a crash: the stored event is marked failed
// without auto-retry, because retrying an event the code cannot interpret is
// wasted work until an operator ships a mapping for it.
//
// # Reconciliation
//
// The Engine applies canonical events under one invariant: for any two events
// on the same (provider, providerSubscriptionID), an event whose occurredAt is
// not after the subscription's lastEventAt is a no-op reported as superseded.
// Comparing against the event's own timestamp rather than arrival order makes
// replay idempotent and makes out-of-order delivery converge to the causal
// result. The comparison runs as a conditional update (memory: under the store
// mutex; postgres: UPDATE ... WHERE last_event_at < $n) so two concurrent
// deliveries for the same subscription cannot lose an update.
//
// Cancelled and expired subscriptions are terminal per provider subscription
// id. Providers issue a fresh id when a customer re-subscribes; an id that
// does get reused after a terminal state is reported superseded rather than
// resurrected.
package reconcile
