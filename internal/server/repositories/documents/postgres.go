package documents

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

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	query :=
		`INSERT INTO documents (user_id, guid, kind, payload, result, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, guid) DO NOTHING
		 RETURNING received`

	err := r.db.QueryRowContext(ctx, query,
		doc.UserID, doc.GUID, doc.Kind, []byte(doc.Payload), doc.Result, doc.Status, doc.Error).Scan(&doc.Received)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, guid string) (*models.Document, error) {
	query :=
		`SELECT user_id, guid, kind, payload, result, status, error, code, received
		 FROM documents WHERE user_id = $1 AND guid = $2`

	var (
		d       models.Document
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID, guid).Scan(
		&d.UserID, &d.GUID, &d.Kind, &payload, &d.Result, &d.Status, &d.Error, &d.Code, &d.Received)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	d.Payload = payload
	return &d, nil
}

func (r *PostgresRepository) Confirm(ctx context.Context, userID, guid, code, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET code = $3, status = $4 WHERE user_id = $1 AND guid = $2`,
		userID, guid, code, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AddUpload(ctx context.Context, u models.Upload) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO uploads (user_id, kind, payload) VALUES ($1, $2, $3)`,
		u.UserID, u.Kind, []byte(u.Payload))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Uploads(ctx context.Context, userID, kind string) ([]models.Upload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, kind, payload, received FROM uploads
		 WHERE user_id = $1 AND kind = $2 ORDER BY id`, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Upload
	for rows.Next() {
		var (
			u       models.Upload
			payload []byte
		)
		if err := rows.Scan(&u.UserID, &u.Kind, &payload, &u.Received); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		u.Payload = payload
		out = append(out, u)
	}
	return out, rows.Err()
}
