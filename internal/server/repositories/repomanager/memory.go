package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/estatekeeper/internal/dbx"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/accessentries"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/delegates"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/documents"
)

// MemoryRepositoryManager hands out process-wide in-memory repositories.
// The DBTX argument is ignored, so the same instance is returned every time.
type MemoryRepositoryManager struct {
	documents     *documents.MemoryRepository
	delegates     *delegates.MemoryRepository
	accessEntries *accessentries.MemoryRepository
	audit         *audit.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		documents:     documents.NewMemoryRepository(),
		delegates:     delegates.NewMemoryRepository(),
		accessEntries: accessentries.NewMemoryRepository(),
		audit:         audit.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Documents(dbx.DBTX) documents.Repository { return m.documents }

func (m *MemoryRepositoryManager) Delegates(dbx.DBTX) delegates.Repository { return m.delegates }

func (m *MemoryRepositoryManager) AccessEntries(dbx.DBTX) accessentries.Repository {
	return m.accessEntries
}

func (m *MemoryRepositoryManager) Audit(dbx.DBTX) audit.Repository { return m.audit }
