package entitlement

import "time"

// SubscriptionGrant is the minimal view of a subscription the resolver needs.
// The reconcile package converts its richer model into this shape so the
// resolver stays free of storage and provider concerns.
type SubscriptionGrant struct {
	Active    bool
	PeriodEnd *time.Time // nil = provider manages expiry out-of-band
}

// LicenseGrant is the minimal view of a license the resolver needs.
type LicenseGrant struct {
	ValidUntil *time.Time // nil = perpetual
}

// Entitlement is the resolved premium decision plus the feature limits the
// host needs to render gates without a second lookup.
type Entitlement struct {
	IsPremium bool
	Limits    Limits
}

// Resolve combines the billing mode with a snapshot of the user's grants.
// Pure function: no I/O, no clock access, safe for concurrent readers.
//
// Decision order, first match wins:
//  1. disabled/freemium modes grant premium unconditionally
//  2. any active subscription whose period end is nil or has not passed
//  3. any license whose expiry is nil or has not passed
//
// Expiry boundaries are inclusive: a grant expiring exactly at now still counts.
func Resolve(mode BillingMode, subs []SubscriptionGrant, licenses []LicenseGrant, now time.Time) Entitlement {
	if mode.GrantsUnconditionally() {
		return Entitlement{IsPremium: true, Limits: PremiumLimits}
	}

	premium := false
	for _, s := range subs {
		if s.Active && (s.PeriodEnd == nil || !s.PeriodEnd.Before(now)) {
			premium = true
			break
		}
	}
	if !premium {
		for _, l := range licenses {
			if l.ValidUntil == nil || !l.ValidUntil.Before(now) {
				premium = true
				break
			}
		}
	}

	return Entitlement{IsPremium: premium, Limits: LimitsFor(premium)}
}
