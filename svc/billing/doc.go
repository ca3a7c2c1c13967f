// Package billing composes the kit into the surface a host application
// consumes: webhook ingestion, entitlement reads, content gating, identity
// linking and retry sweeps.
//
// The webhook path is a synchronous pipeline per request: verify the
// signature, persist the raw event, normalize it, reconcile it. Only
// authentication and validation failures reach the HTTP boundary; once an
// event is durably stored the provider always gets a 200 and any processing
// failure is absorbed into the event's status for the retry coordinator.
// Entitlement reads consequently reflect best known state, which may lag a
// failed-and-not-yet-retried event; that eventual-consistency window is a
// property of the design, not a bug.
package billing
