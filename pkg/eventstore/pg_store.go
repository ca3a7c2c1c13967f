package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a PostgreSQL-backed Store. The webhook_events table carries a
// partial unique index on (provider, provider_event_id) so transport-level
// dedup happens inside the insert, not in application code.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a pgx pool. The schema is created by the kit's migrations.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// The dedup index is partial, so the ON CONFLICT arbiter must repeat its
// predicate verbatim; Postgres will not infer a partial unique index without
// it and rejects the statement with 42P10.
const appendEventQuery = `INSERT INTO webhook_events
	(id, provider, event_type, provider_event_id, external_subject_id,
	 raw_payload, status, retryable, attempts, received_at)
 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, 0, $9)
 ON CONFLICT (provider, provider_event_id) WHERE provider_event_id IS NOT NULL DO NOTHING`

func (s *PGStore) Append(ctx context.Context, event *Event) (uuid.UUID, error) {
	if !event.Provider.Valid() {
		return uuid.Nil, ErrInvalidProvider
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	event.Status = StatusUnprocessed

	tag, err := s.pool.Exec(ctx, appendEventQuery,
		event.ID, event.Provider, event.EventType, event.ProviderEventID,
		event.ExternalSubjectID, event.RawPayload, event.Status, event.Retryable,
		event.ReceivedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("append webhook event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// At-least-once redelivery from the provider: hand back the stored id.
		var existing uuid.UUID
		err := s.pool.QueryRow(ctx,
			`SELECT id FROM webhook_events WHERE provider = $1 AND provider_event_id = $2`,
			event.Provider, event.ProviderEventID).Scan(&existing)
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolve duplicate webhook event: %w", err)
		}
		return existing, ErrDuplicateEvent
	}

	return event.ID, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider, event_type, COALESCE(provider_event_id, ''),
			external_subject_id, raw_payload, status, COALESCE(failure_reason, ''),
			retryable, attempts, received_at, processed_at, claimed_at
		 FROM webhook_events WHERE id = $1`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return event, nil
}

func (s *PGStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = $2, processed_at = now(), failure_reason = NULL
		 WHERE id = $1 AND status <> $2`,
		id, StatusProcessed)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyNoop(ctx, id)
	}
	return nil
}

func (s *PGStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryable bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = $2, failure_reason = $3, retryable = $4, attempts = attempts + 1
		 WHERE id = $1 AND status <> $5`,
		id, StatusFailed, reason, retryable, StatusProcessed)
	if err != nil {
		return fmt.Errorf("mark webhook event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyNoop(ctx, id)
	}
	return nil
}

// ClaimRetryable uses SKIP LOCKED so a sweep never blocks behind, or doubles
// up with, live webhook processing touching the same rows. Rows stuck in
// retrying past the staleness cutoff belong to a sweep that died mid-batch
// and are claimed again.
func (s *PGStore) ClaimRetryable(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration) ([]Event, error) {
	staleCutoff := time.Now().UTC().Add(-staleAfter)
	rows, err := s.pool.Query(ctx,
		`UPDATE webhook_events SET status = $1, claimed_at = now()
		 WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = $2
			   OR (status = $3 AND retryable AND attempts < $4)
			   OR (status = $1 AND claimed_at <= $5)
			ORDER BY received_at
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, provider, event_type, COALESCE(provider_event_id, ''),
			external_subject_id, raw_payload, status, COALESCE(failure_reason, ''),
			retryable, attempts, received_at, processed_at, claimed_at`,
		StatusRetrying, StatusUnprocessed, StatusFailed, maxAttempts, staleCutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("claim retryable webhook events: %w", err)
	}
	defer rows.Close()

	var claimed []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed webhook event: %w", err)
		}
		claimed = append(claimed, *event)
	}
	return claimed, rows.Err()
}

// classifyNoop distinguishes "row missing" from "row already processed" after
// a guarded update touched nothing.
func (s *PGStore) classifyNoop(ctx context.Context, id uuid.UUID) error {
	var status Status
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM webhook_events WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("classify webhook event update: %w", err)
	}
	if status == StatusProcessed {
		return ErrAlreadyProcessed
	}
	return nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var event Event
	err := row.Scan(&event.ID, &event.Provider, &event.EventType, &event.ProviderEventID,
		&event.ExternalSubjectID, &event.RawPayload, &event.Status, &event.FailureReason,
		&event.Retryable, &event.Attempts, &event.ReceivedAt, &event.ProcessedAt,
		&event.ClaimedAt)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
