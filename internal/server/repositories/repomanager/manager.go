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

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	Delegates(db dbx.DBTX) delegates.Repository
	AccessEntries(db dbx.DBTX) accessentries.Repository
	Audit(db dbx.DBTX) audit.Repository
}
