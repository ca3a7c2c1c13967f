package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only event log. Append is the only way events enter the
// system; the status transitions are the only mutations.
type Store interface {
	// Append persists a new event and returns its id. When the event carries a
	// provider-native event id that is already stored for the same provider,
	// Append returns the existing id together with ErrDuplicateEvent and stores
	// nothing.
	Append(ctx context.Context, event *Event) (uuid.UUID, error)

	// Get returns a stored event by id.
	Get(ctx context.Context, id uuid.UUID) (*Event, error)

	// MarkProcessed transitions the event to processed. Processed events are
	// immutable: marking an already-processed event fails with
	// ErrAlreadyProcessed.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed processing attempt, incrementing the attempt
	// counter. Non-retryable failures (unknown event type, link conflicts) are
	// excluded from retry sweeps and wait for operator attention.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryable bool) error

	// ClaimRetryable atomically claims up to limit events eligible for a retry
	// sweep (unprocessed or retryably failed, under the attempt bound) by
	// transitioning them to StatusRetrying. Claimed events are invisible to
	// concurrent sweeps. Events still in StatusRetrying whose claim is older
	// than staleAfter were orphaned by a crashed sweep and are claimed again.
	ClaimRetryable(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration) ([]Event, error)
}
