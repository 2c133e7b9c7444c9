// Package repomanager vends repository implementations for the configured
// durable store: PostgreSQL (with goose migrations) or process memory.
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/estatekeeper/internal/dbx"
	"github.com/dmitrijs2005/estatekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/accessentries"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/delegates"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/documents"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound to
// the DBTX they are given.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Delegates(db dbx.DBTX) delegates.Repository {
	return delegates.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) AccessEntries(db dbx.DBTX) accessentries.Repository {
	return accessentries.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
