package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresSessionRepository resolves owner access tokens issued by the main
// platform. This service only reads the table; login and token issuance live
// in the identity service.
type PostgresSessionRepository struct {
	pool db.Pool
}

// NewPostgresSessionRepository constructs a session repository backed by PostgreSQL.
func NewPostgresSessionRepository(pool db.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Find loads an owner session by its access token.
func (r *PostgresSessionRepository) Find(ctx context.Context, accessToken string) (models.Session, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT access_token, user_id, expires_at
        FROM sessions
        WHERE access_token = $1
    `, accessToken)

	var session models.Session
	if err := row.Scan(&session.AccessToken, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrNotFound
		}
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}
