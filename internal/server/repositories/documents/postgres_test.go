package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

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

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)INSERT INTO documents .*ON CONFLICT \(user_id, guid\) DO NOTHING.*RETURNING received`
	mock.ExpectQuery(q).
		WithArgs("u1", "o1", "order", []byte(`{}`), "ok", "accepted", "").
		WillReturnRows(sqlmock.NewRows([]string{"received"}).AddRow(now))
	mock.ExpectQuery(q).
		WithArgs("u1", "o1", "order", []byte(`{}`), "ok", "accepted", "").
		WillReturnError(sql.ErrNoRows)

	doc := &models.Document{UserID: "u1", GUID: "o1", Kind: "order", Payload: json.RawMessage(`{}`), Result: "ok", Status: "accepted"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.Equal(t, now, doc.Received)

	err := repo.Create(context.Background(), doc)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	cols := []string{"user_id", "guid", "kind", "payload", "result", "status", "error", "code", "received"}
	mock.ExpectQuery(`FROM documents WHERE user_id = \$1 AND guid = \$2`).WithArgs("u1", "o1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "o1", "order", []byte(`{"n":1}`), "ok", "accepted", "", "", time.Now()))
	mock.ExpectQuery(`FROM documents`).WithArgs("u1", "o2").WillReturnError(sql.ErrNoRows)

	d, err := repo.Get(context.Background(), "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", d.Status)
	assert.JSONEq(t, `{"n":1}`, string(d.Payload))

	_, err = repo.Get(context.Background(), "u1", "o2")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConfirm(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE documents SET code`).WithArgs("u1", "o1", "7", "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE documents SET code`).WithArgs("u1", "o2", "7", "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Confirm(context.Background(), "u1", "o1", "7", "confirmed"))
	assert.ErrorIs(t, repo.Confirm(context.Background(), "u1", "o2", "7", "confirmed"), common.ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	doc := &models.Document{UserID: "u1", GUID: "o1", Kind: "order", Result: "ok"}
	require.NoError(t, repo.Create(ctx, doc))
	assert.ErrorIs(t, repo.Create(ctx, &models.Document{UserID: "u1", GUID: "o1"}), common.ErrAlreadyExists)
	require.NoError(t, repo.Create(ctx, &models.Document{UserID: "u2", GUID: "o1"}))

	require.NoError(t, repo.Confirm(ctx, "u1", "o1", "7", "confirmed"))
	got, err := repo.Get(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Code)
	assert.Equal(t, "confirmed", got.Status)

	require.NoError(t, repo.AddUpload(ctx, models.Upload{UserID: "u1", Kind: "locations"}))
	require.NoError(t, repo.AddUpload(ctx, models.Upload{UserID: "u1", Kind: "push_token"}))
	ups, err := repo.Uploads(ctx, "u1", "locations")
	require.NoError(t, err)
	assert.Len(t, ups, 1)
}
