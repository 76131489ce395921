// Package repomanager vends repository implementations bound to a database
// handle and runs schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/documents"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Catalog(db dbx.DBTX) catalog.Repository
	Documents(db dbx.DBTX) documents.Repository
}
