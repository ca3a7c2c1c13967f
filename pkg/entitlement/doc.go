// Package entitlement answers "is this user premium right now?".
//
// The core of the package is Resolve, a pure function that folds the
// deployment-wide billing mode together with a snapshot of the user's
// subscription and license grants. Because it is pure it is trivially safe
// under concurrency and trivially testable; all I/O lives at the edges
// (LicenseStore for persistence, PremiumCache for the derived read-optimized
// flag).
//
// The cached premium flag is never a source of truth. Writers recompute it
// through Resolve after every relevant state change, and readers that find the
// cache cold fall back to recomputation. If the cache and a recomputed value
// ever disagree, the recomputed value wins.
//
// Billing modes:
//
//   - ModeDisabled and ModeFreemium grant premium unconditionally. Self-hosted
//     and free deployments run in these modes.
//   - ModeLicenseKey and ModeSubscription require an active grant: a
//     subscription that is active and not past its period end, or a license
//     that has not passed its expiry. Nil expiries mean "provider-managed" for
//     subscriptions and "perpetual" for licenses; both count as active.
package entitlement
