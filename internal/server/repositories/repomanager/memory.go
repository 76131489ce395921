package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/documents"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/users"
)

// MemoryRepositoryManager shares one set of in-memory repositories. The
// database handle passed to the factories is ignored.
type MemoryRepositoryManager struct {
	users     *users.MemoryRepository
	catalog   *catalog.MemoryRepository
	documents *documents.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:     users.NewMemoryRepository(),
		catalog:   catalog.NewMemoryRepository(),
		documents: documents.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository         { return m.users }
func (m *MemoryRepositoryManager) Catalog(dbx.DBTX) catalog.Repository     { return m.catalog }
func (m *MemoryRepositoryManager) Documents(dbx.DBTX) documents.Repository { return m.documents }
