package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "store.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigratesSchema(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, name := range tenantTables {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
		require.NoError(t, err)
		require.Equal(t, 1, n, name)
	}
}

func TestOpen_MigrationFailure(t *testing.T) {
	orig := RunMigrations
	t.Cleanup(func() { RunMigrations = orig })
	RunMigrations = func(context.Context, *sql.DB) error { return errors.New("boom") }

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "store.db"), logging.Discard())
	require.ErrorContains(t, err, "boom")
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(ctx, path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Tenant("t1").SetSetting(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, logging.Discard())
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Tenant("t1").Setting(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}
