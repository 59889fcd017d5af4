package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresOTPRepository stores pending one-time codes, one per (share, email).
type PostgresOTPRepository struct {
	pool db.Pool
}

// NewPostgresOTPRepository constructs an OTP repository backed by PostgreSQL.
func NewPostgresOTPRepository(pool db.Pool) *PostgresOTPRepository {
	return &PostgresOTPRepository{pool: pool}
}

// Upsert stores a new code hash, replacing any outstanding code for the same
// grant and email. Resending an OTP therefore invalidates the previous one.
func (r *PostgresOTPRepository) Upsert(ctx context.Context, otp models.ShareOTP) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO share_otps (share_id, email, code_hash, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (share_id, email)
        DO UPDATE SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at,
                      created_at = EXCLUDED.created_at
    `, otp.ShareID, otp.Email, otp.CodeHash, otp.ExpiresAt.UTC(), otp.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}

	return nil
}

// Find loads the pending code for a grant and email.
func (r *PostgresOTPRepository) Find(ctx context.Context, shareID, email string) (models.ShareOTP, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ShareOTP{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT share_id, email, code_hash, expires_at, created_at
        FROM share_otps
        WHERE share_id = $1 AND email = $2
    `, shareID, email)

	var otp models.ShareOTP
	if err := row.Scan(&otp.ShareID, &otp.Email, &otp.CodeHash, &otp.ExpiresAt, &otp.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShareOTP{}, ErrNotFound
		}
		return models.ShareOTP{}, fmt.Errorf("select otp: %w", err)
	}

	otp.ExpiresAt = otp.ExpiresAt.UTC()
	otp.CreatedAt = otp.CreatedAt.UTC()
	return otp, nil
}

// Delete removes a code once it has been used.
func (r *PostgresOTPRepository) Delete(ctx context.Context, shareID, email string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM share_otps
        WHERE share_id = $1 AND email = $2
    `, shareID, email); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}

	return nil
}
