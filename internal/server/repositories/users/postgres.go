package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user, or replaces the password and options of an
// existing user with the same name.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	opts, err := json.Marshal(user.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, username, password_hash, options)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash, options = EXCLUDED.options
		 RETURNING id`

	err = r.db.QueryRowContext(ctx, query, user.ID, user.UserName, user.PasswordHash, opts).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

const userColumns = `id, username, password_hash, options, last_seq`

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u    models.User
		opts []byte
	)
	if err := row.Scan(&u.ID, &u.UserName, &u.PasswordHash, &opts, &u.LastSeq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(opts, &u.Options); err != nil {
		return nil, fmt.Errorf("user %s options: %w", u.UserName, err)
	}
	return &u, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, userName))
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PostgresRepository) AdvanceSeq(ctx context.Context, id string, seq int64) (int64, error) {
	query :=
		`UPDATE users u SET last_seq = $2
		 FROM (SELECT last_seq FROM users WHERE id = $1 FOR UPDATE) prev
		 WHERE u.id = $1
		 RETURNING prev.last_seq`

	var prev int64
	err := r.db.QueryRowContext(ctx, query, id, seq).Scan(&prev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return prev, nil
}
