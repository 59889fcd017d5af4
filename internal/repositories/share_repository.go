package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresShareRepository provides PostgreSQL-backed persistence for share grants.
type PostgresShareRepository struct {
	pool db.Pool
}

// NewPostgresShareRepository constructs a share repository backed by PostgreSQL.
func NewPostgresShareRepository(pool db.Pool) *PostgresShareRepository {
	return &PostgresShareRepository{pool: pool}
}

const shareColumns = `id, owner_id, document_ids, recipient_email, recipient_type,
        recipient_metadata, allow_download, expires_at, token, share_kind, status,
        drive_permissions, created_at`

// Create persists a new share grant.
func (r *PostgresShareRepository) Create(ctx context.Context, grant models.ShareGrant) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	metadata, err := json.Marshal(orEmpty(grant.RecipientMetadata))
	if err != nil {
		return fmt.Errorf("marshal recipient metadata: %w", err)
	}
	ledger, err := json.Marshal(orEmpty(grant.DrivePermissions))
	if err != nil {
		return fmt.Errorf("marshal drive permissions: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO share_grants (`+shareColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, grant.ID, grant.OwnerID, grant.DocumentIDs, grant.RecipientEmail, grant.RecipientType,
		metadata, grant.AllowDownload, grant.ExpiresAt.UTC(), grant.Token, grant.ShareKind,
		grant.Status, ledger, grant.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert share grant: %w", err)
	}

	return nil
}

// FindByToken fetches a grant by its public bearer token.
func (r *PostgresShareRepository) FindByToken(ctx context.Context, token string) (models.ShareGrant, error) {
	return r.findOne(ctx, `WHERE token = $1`, token)
}

// FindByID fetches a grant by id.
func (r *PostgresShareRepository) FindByID(ctx context.Context, id string) (models.ShareGrant, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresShareRepository) findOne(ctx context.Context, where string, arg any) (models.ShareGrant, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ShareGrant{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+shareColumns+` FROM share_grants `+where, arg)

	grant, err := scanShareGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShareGrant{}, ErrNotFound
		}
		return models.ShareGrant{}, fmt.Errorf("select share grant: %w", err)
	}
	return grant, nil
}

// ListByOwner returns all grants issued by a user, newest first.
func (r *PostgresShareRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareGrant, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+shareColumns+`
        FROM share_grants
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query share grants: %w", err)
	}
	defer rows.Close()

	var grants []models.ShareGrant
	for rows.Next() {
		grant, err := scanShareGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share grant: %w", err)
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share grants: %w", err)
	}

	return grants, nil
}

// UpdateStatus flips a grant's lifecycle status.
func (r *PostgresShareRepository) UpdateStatus(ctx context.Context, id, status string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE share_grants
        SET status = $2
        WHERE id = $1
    `, id, status)
	if err != nil {
		return fmt.Errorf("update share status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateLedger replaces the grant's drive permission ledger.
func (r *PostgresShareRepository) UpdateLedger(ctx context.Context, id string, ledger map[string]string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	encoded, err := json.Marshal(orEmpty(ledger))
	if err != nil {
		return fmt.Errorf("marshal drive permissions: %w", err)
	}

	tag, err := conn.Exec(ctx, `
        UPDATE share_grants
        SET drive_permissions = $2
        WHERE id = $1
    `, id, encoded)
	if err != nil {
		return fmt.Errorf("update share ledger: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShareGrant(row rowScanner) (models.ShareGrant, error) {
	var (
		grant    models.ShareGrant
		metadata []byte
		ledger   []byte
	)

	if err := row.Scan(&grant.ID, &grant.OwnerID, &grant.DocumentIDs, &grant.RecipientEmail,
		&grant.RecipientType, &metadata, &grant.AllowDownload, &grant.ExpiresAt, &grant.Token,
		&grant.ShareKind, &grant.Status, &ledger, &grant.CreatedAt); err != nil {
		return models.ShareGrant{}, err
	}

	if err := json.Unmarshal(metadata, &grant.RecipientMetadata); err != nil {
		return models.ShareGrant{}, fmt.Errorf("unmarshal recipient metadata: %w", err)
	}
	if err := json.Unmarshal(ledger, &grant.DrivePermissions); err != nil {
		return models.ShareGrant{}, fmt.Errorf("unmarshal drive permissions: %w", err)
	}

	grant.ExpiresAt = grant.ExpiresAt.UTC()
	grant.CreatedAt = grant.CreatedAt.UTC()
	return grant, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
