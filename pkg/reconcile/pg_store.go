package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

// PGSubscriptionStore is a PostgreSQL-backed SubscriptionStore. The ordering
// guard runs inside the UPDATE's WHERE clause, so concurrent deliveries for
// the same subscription serialize on the row without any application lock.
type PGSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPGSubscriptionStore wraps a pgx pool. The schema is created by the kit's
// migrations.
func NewPGSubscriptionStore(pool *pgxpool.Pool) *PGSubscriptionStore {
	return &PGSubscriptionStore{pool: pool}
}

const subscriptionColumns = `id, user_id, provider, provider_sub_id, subject_id, platform,
	status, current_period_end, last_event_at, cancelled_at, created_at, updated_at`

func (s *PGSubscriptionStore) GetByProviderSubID(ctx context.Context, provider eventstore.Provider, providerSubID string) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE provider = $1 AND provider_sub_id = $2`,
		provider, providerSubID)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionMissing
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *PGSubscriptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *PGSubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions
			(id, user_id, provider, provider_sub_id, subject_id, platform,
			 status, current_period_end, last_event_at, cancelled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.UserID, sub.Provider, sub.ProviderSubID, sub.SubjectID, sub.Platform,
		sub.Status, sub.CurrentPeriodEnd, sub.LastEventAt, sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSubscriptionExists
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *PGSubscriptionStore) ApplyIfNewer(ctx context.Context, tr *Transition) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE subscriptions
		 SET status = COALESCE($3, status),
			 current_period_end = CASE WHEN $4 THEN $5 ELSE current_period_end END,
			 cancelled_at = COALESCE($6, cancelled_at),
			 last_event_at = $7, updated_at = now()
		 WHERE provider = $1 AND provider_sub_id = $2 AND last_event_at < $7
		 RETURNING `+subscriptionColumns,
		tr.Provider, tr.ProviderSubID, tr.Status, tr.SetPeriodEnd, tr.PeriodEnd,
		tr.CancelledAt, tr.OccurredAt)

	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apply subscription transition: %w", err)
	}
	return sub, nil
}

func (s *PGSubscriptionStore) AttributeUser(ctx context.Context, subjectID string, userID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET user_id = $2, updated_at = now()
		 WHERE subject_id = $1 AND user_id IS NULL`,
		subjectID, userID)
	if err != nil {
		return 0, fmt.Errorf("attribute subscriptions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Provider, &sub.ProviderSubID, &sub.SubjectID,
		&sub.Platform, &sub.Status, &sub.CurrentPeriodEnd, &sub.LastEventAt, &sub.CancelledAt,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
