package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, row models.CatalogRow) (int64, error) {
	query :=
		`INSERT INTO catalog (user_id, data_type, key, payload)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, data_type, key) DO UPDATE
		 SET payload = EXCLUDED.payload, seq = nextval('catalog_seq')
		 RETURNING seq`

	var seq int64
	err := r.db.QueryRowContext(ctx, query, row.UserID, row.DataType, row.Key, []byte(row.Payload)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) Page(ctx context.Context, userID, dataType string, after int64, limit int) ([]models.CatalogRow, error) {
	query :=
		`SELECT user_id, data_type, key, seq, payload FROM catalog
		 WHERE user_id = $1 AND data_type = $2 AND seq > $3
		 ORDER BY seq LIMIT $4`
	return r.query(ctx, query, userID, dataType, after, limit)
}

func (r *PostgresRepository) Changed(ctx context.Context, userID string, after int64, limit int) ([]models.CatalogRow, error) {
	query :=
		`SELECT user_id, data_type, key, seq, payload FROM catalog
		 WHERE user_id = $1 AND seq > $2
		 ORDER BY seq LIMIT $3`
	return r.query(ctx, query, userID, after, limit)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.CatalogRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogRow
	for rows.Next() {
		var (
			c       models.CatalogRow
			payload []byte
		)
		if err := rows.Scan(&c.UserID, &c.DataType, &c.Key, &c.Seq, &payload); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.Payload = payload
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MaxSeq(ctx context.Context, userID string) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM catalog WHERE user_id = $1`, userID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) PutContent(ctx context.Context, userID, docType, docGUID, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_contents (user_id, doc_type, doc_guid, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, doc_type, doc_guid) DO UPDATE SET content = EXCLUDED.content`,
		userID, docType, docGUID, content)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Content(ctx context.Context, userID, docType, docGUID string) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM document_contents WHERE user_id = $1 AND doc_type = $2 AND doc_guid = $3`,
		userID, docType, docGUID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return content, nil
}
