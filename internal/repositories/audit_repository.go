package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresAuditRepository persists the append-only share audit trail.
type PostgresAuditRepository struct {
	pool db.Pool
}

// NewPostgresAuditRepository constructs an audit repository backed by PostgreSQL.
func NewPostgresAuditRepository(pool db.Pool) *PostgresAuditRepository {
	return &PostgresAuditRepository{pool: pool}
}

// Append stores a new audit entry. Entries are never mutated afterwards except
// by MarkOTPVerified.
func (r *PostgresAuditRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	metadata, err := json.Marshal(orEmpty(entry.RecipientMetadata))
	if err != nil {
		return fmt.Errorf("marshal recipient metadata: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO share_audits (id, share_id, recipient_email, recipient_type,
            recipient_metadata, email_status, otp_verified_at, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, entry.ID, entry.ShareID, entry.RecipientEmail, entry.RecipientType, metadata,
		entry.EmailStatus, entry.OTPVerifiedAt, entry.ExpiresAt.UTC(), entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// MarkOTPVerified stamps the verification timestamp on the grant's audit entry.
// Only the first verification writes; later verifications are no-ops.
func (r *PostgresAuditRepository) MarkOTPVerified(ctx context.Context, shareID, email string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        UPDATE share_audits
        SET otp_verified_at = $3
        WHERE share_id = $1 AND recipient_email = $2 AND otp_verified_at IS NULL
    `, shareID, email, at.UTC())
	if err != nil {
		return fmt.Errorf("stamp otp verification: %w", err)
	}

	return nil
}
