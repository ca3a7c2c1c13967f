package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLicenseStore is a PostgreSQL-backed LicenseStore.
type PGLicenseStore struct {
	pool *pgxpool.Pool
}

// NewPGLicenseStore wraps a pgx pool. The licenses table is created by the
// kit's migrations.
func NewPGLicenseStore(pool *pgxpool.Pool) *PGLicenseStore {
	return &PGLicenseStore{pool: pool}
}

func (s *PGLicenseStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, valid_until, created_at FROM licenses WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var out []License
	for rows.Next() {
		var l License
		if err := rows.Scan(&l.ID, &l.UserID, &l.ValidUntil, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGLicenseStore) Save(ctx context.Context, license *License) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO licenses (id, user_id, valid_until, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET valid_until = EXCLUDED.valid_until`,
		license.ID, license.UserID, license.ValidUntil, license.CreatedAt)
	if err != nil {
		return fmt.Errorf("save license: %w", err)
	}
	return nil
}
