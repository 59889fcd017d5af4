package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresRecipientSessionRepository persists the short-lived tokens handed to
// recipients after OTP verification.
type PostgresRecipientSessionRepository struct {
	pool db.Pool
}

// NewPostgresRecipientSessionRepository constructs a recipient session repository.
func NewPostgresRecipientSessionRepository(pool db.Pool) *PostgresRecipientSessionRepository {
	return &PostgresRecipientSessionRepository{pool: pool}
}

// Save stores a session record.
func (r *PostgresRecipientSessionRepository) Save(ctx context.Context, session models.RecipientSession) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO recipient_sessions (token, share_id, email, expires_at)
        VALUES ($1, $2, $3, $4)
    `, session.Token, session.ShareID, session.Email, session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert recipient session: %w", err)
	}

	return nil
}

// Find loads a session by its token.
func (r *PostgresRecipientSessionRepository) Find(ctx context.Context, token string) (models.RecipientSession, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.RecipientSession{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT token, share_id, email, expires_at
        FROM recipient_sessions
        WHERE token = $1
    `, token)

	var session models.RecipientSession
	if err := row.Scan(&session.Token, &session.ShareID, &session.Email, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RecipientSession{}, ErrNotFound
		}
		return models.RecipientSession{}, fmt.Errorf("select recipient session: %w", err)
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}
