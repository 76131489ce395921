// Package store is the device-side relational cache. Every table is scoped by
// tenant (connection_id); callers obtain a *Tenant handle and perform all
// reads and writes through it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// maxVariables bounds the number of bound parameters of one statement.
const maxVariables = 999

// Store owns the SQLite handle shared by all tenants.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// RunMigrations applies the embedded goose migrations.
var RunMigrations = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return New(db, log), nil
}

// New wraps an already opened database.
func New(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, log: log.With("module", "store")}
}

func (s *Store) Close() error { return s.db.Close() }

// Tenant returns the handle for one tenant.
func (s *Store) Tenant(id string) *Tenant {
	return &Tenant{id: id, db: s.db, log: s.log.With("tenant", id)}
}

// Tenant performs tenant-scoped operations. It is safe for concurrent use.
type Tenant struct {
	id  string
	db  *sql.DB
	log logging.Logger
}

// ID returns the tenant identifier stamped into connection_id.
func (t *Tenant) ID() string { return t.id }
