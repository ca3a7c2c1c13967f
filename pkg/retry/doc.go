// Package retry re-drives stored webhook events whose processing failed
// transiently.
//
// The coordinator runs out-of-band (cron or an admin action), never on the
// webhook request path: the HTTP layer acknowledges providers as soon as an
// event is durably stored, so reprocessing is purely an internal concern.
// Each sweep claims a batch of eligible events by flipping their status to
// retrying, which keeps a live provider redelivery and the sweep from
// applying the same stored event concurrently.
//
// Only one sweep runs at a time. In-process that is an atomic flag; across
// instances an optional Redis lease (SETNX with a TTL) extends the same
// guarantee. Events that failed for non-retryable reasons — unknown event
// types, identity conflicts — are never claimed; they wait for an operator.
package retry
