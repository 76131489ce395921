package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var columns = []string{"user_id", "data_type", "key", "seq", "payload"}

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)INSERT INTO catalog .*ON CONFLICT \(user_id, data_type, key\) DO UPDATE.*nextval\('catalog_seq'\).*RETURNING seq`).
		WithArgs("u1", "goods", "g1", []byte(`{"guid":"g1"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(12)))

	seq, err := repo.Upsert(context.Background(), models.CatalogRow{
		UserID: "u1", DataType: "goods", Key: "g1", Payload: json.RawMessage(`{"guid":"g1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPage(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)SELECT .* FROM catalog\s+WHERE user_id = \$1 AND data_type = \$2 AND seq > \$3\s+ORDER BY seq LIMIT \$4`).
		WithArgs("u1", "goods", int64(50), 3).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("u1", "goods", "g1", int64(51), []byte(`{"guid":"g1"}`)).
			AddRow("u1", "goods", "g2", int64(60), []byte(`{"guid":"g2"}`)))

	rows, err := repo.Page(context.Background(), "u1", "goods", 50, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(60), rows[1].Seq)
	assert.JSONEq(t, `{"guid":"g2"}`, string(rows[1].Payload))
}

func TestChanged_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM catalog`).WillReturnError(errors.New("boom"))

	_, err := repo.Changed(context.Background(), "u1", 0, 10)
	require.ErrorContains(t, err, "db error")
}

func TestContent(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT content FROM document_contents`).WithArgs("u1", "invoice", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("<doc/>"))
	mock.ExpectQuery(`SELECT content FROM document_contents`).WithArgs("u1", "invoice", "d2").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.Content(context.Background(), "u1", "invoice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "<doc/>", c)

	_, err = repo.Content(context.Background(), "u1", "invoice", "d2")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	put := func(user, dt, key string) int64 {
		seq, err := repo.Upsert(ctx, models.CatalogRow{UserID: user, DataType: dt, Key: key, Payload: json.RawMessage(`{}`)})
		require.NoError(t, err)
		return seq
	}
	put("u1", "goods", "g1")
	put("u1", "goods", "g2")
	put("u1", "clients", "c1")
	put("u2", "goods", "x")
	last := put("u1", "goods", "g1")

	page, err := repo.Page(ctx, "u1", "goods", 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "g2", page[0].Key, "an updated row moves to the end")
	assert.Equal(t, last, page[1].Seq)

	page, err = repo.Page(ctx, "u1", "goods", 0, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	changed, err := repo.Changed(ctx, "u1", page[0].Seq, 10)
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	top, err := repo.MaxSeq(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, last, top)

	_, err = repo.Content(ctx, "u1", "invoice", "d1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, repo.PutContent(ctx, "u1", "invoice", "d1", "<doc/>"))
	c, err := repo.Content(ctx, "u1", "invoice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "<doc/>", c)
}
