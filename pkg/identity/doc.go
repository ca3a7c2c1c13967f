// Package identity links provider-issued anonymous purchaser identities to
// authenticated accounts.
//
// Mobile purchases can complete before the purchaser ever signs in, so the
// aggregator knows them only by an anonymous id. The reconcile engine parks
// such subscriptions unowned and records the identity here as pending; when
// the host's login or registration flow calls Link, ownership is resolved and
// every parked subscription is reattributed.
//
// Linkage is one-to-one in both directions and immutable once established.
// An anonymous id claimed by one account can never move to another, and an
// account can never hold two anonymous identities; either attempt fails with
// ErrLinkConflict rather than silently leaking entitlement across accounts.
package identity
