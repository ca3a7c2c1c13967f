// Package eventstore is the durable, append-only log of inbound payment
// webhook events.
//
// Every verified webhook is persisted here verbatim before any processing
// happens, so the HTTP layer can acknowledge the provider immediately and
// processing failures become an internal concern instead of a provider-side
// retry storm. Events move through a small lifecycle:
//
//	unprocessed -> processed
//	unprocessed -> failed -> retrying -> processed | failed
//
// A processed event is immutable; entitlement can only change through a new
// event. Append defends against provider-side at-least-once delivery by
// deduplicating on the provider's native event identifier when one is
// supplied; this is transport-level dedup, distinct from the business-level
// idempotency the reconcile package enforces via event timestamps.
//
// Two implementations ship with the kit: MemoryStore for tests and PGStore
// backed by PostgreSQL.
package eventstore
