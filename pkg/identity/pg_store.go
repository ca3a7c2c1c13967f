package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLinkStore is a PostgreSQL-backed LinkStore. The table carries unique
// constraints on both the anonymous id and the linked user id, so the
// one-to-one invariant holds even against concurrent linkers.
type PGLinkStore struct {
	pool *pgxpool.Pool
}

// NewPGLinkStore wraps a pgx pool. The schema is created by the kit's
// migrations.
func NewPGLinkStore(pool *pgxpool.Pool) *PGLinkStore {
	return &PGLinkStore{pool: pool}
}

func (s *PGLinkStore) GetByAnonymousID(ctx context.Context, anonymousID string) (*LinkRecord, error) {
	return s.get(ctx,
		`SELECT provider_anonymous_id, linked_user_id, created_at, linked_at
		 FROM anonymous_links WHERE provider_anonymous_id = $1`, anonymousID)
}

func (s *PGLinkStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*LinkRecord, error) {
	return s.get(ctx,
		`SELECT provider_anonymous_id, linked_user_id, created_at, linked_at
		 FROM anonymous_links WHERE linked_user_id = $1`, userID)
}

func (s *PGLinkStore) get(ctx context.Context, query string, arg any) (*LinkRecord, error) {
	var record LinkRecord
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&record.ProviderAnonymousID, &record.LinkedUserID, &record.CreatedAt, &record.LinkedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get anonymous link: %w", err)
	}
	return &record, nil
}

func (s *PGLinkStore) Create(ctx context.Context, record *LinkRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO anonymous_links (provider_anonymous_id, linked_user_id, created_at, linked_at)
		 VALUES ($1, $2, $3, $4)`,
		record.ProviderAnonymousID, record.LinkedUserID, record.CreatedAt, record.LinkedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrLinkExists
		}
		return fmt.Errorf("create anonymous link: %w", err)
	}
	return nil
}

func (s *PGLinkStore) Save(ctx context.Context, record *LinkRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE anonymous_links SET linked_user_id = $2, linked_at = $3
		 WHERE provider_anonymous_id = $1`,
		record.ProviderAnonymousID, record.LinkedUserID, record.LinkedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrLinkConflict
		}
		return fmt.Errorf("save anonymous link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}
