package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresCredentialRepository stores per-user Google OAuth token pairs.
type PostgresCredentialRepository struct {
	pool db.Pool
}

// NewPostgresCredentialRepository constructs a credential repository backed by PostgreSQL.
func NewPostgresCredentialRepository(pool db.Pool) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

// Find loads the stored credential for a user.
func (r *PostgresCredentialRepository) Find(ctx context.Context, userID string) (models.ProviderCredential, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ProviderCredential{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_id, access_token, refresh_token, expires_at, updated_at
        FROM google_credentials
        WHERE user_id = $1
    `, userID)

	var cred models.ProviderCredential
	if err := row.Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken,
		&cred.ExpiresAt, &cred.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ProviderCredential{}, ErrNotFound
		}
		return models.ProviderCredential{}, fmt.Errorf("select google credential: %w", err)
	}

	cred.ExpiresAt = cred.ExpiresAt.UTC()
	cred.UpdatedAt = cred.UpdatedAt.UTC()
	return cred, nil
}

// Update persists a refreshed token pair.
func (r *PostgresCredentialRepository) Update(ctx context.Context, cred models.ProviderCredential) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE google_credentials
        SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = $5
        WHERE user_id = $1
    `, cred.UserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt.UTC(), cred.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update google credential: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
