package repositories

import (
	"context"
	"fmt"

	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/models"
)

// PostgresDocumentRepository reads document metadata maintained by the vault
// service. The share service never writes documents.
type PostgresDocumentRepository struct {
	pool db.Pool
}

// NewPostgresDocumentRepository constructs a document repository backed by PostgreSQL.
func NewPostgresDocumentRepository(pool db.Pool) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{pool: pool}
}

// FindByIDs returns the documents matching the provided ids. Missing ids are
// simply absent from the result; callers decide whether that is an error.
func (r *PostgresDocumentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.DocumentRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, file_name, file_type, main_category, sub_category,
               share_enabled, storage_path, created_at
        FROM documents
        WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DocumentRecord
	for rows.Next() {
		var doc models.DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.FileType,
			&doc.MainCategory, &doc.SubCategory, &doc.ShareEnabled, &doc.StoragePath,
			&doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.CreatedAt = doc.CreatedAt.UTC()
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}
