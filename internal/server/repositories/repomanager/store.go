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

// Store binds a RepositoryManager to a database handle. db is nil for the
// in-memory manager.
type Store struct {
	rm RepositoryManager
	db *sql.DB
	h  dbx.DBTX
}

func NewStore(rm RepositoryManager, db *sql.DB) *Store {
	s := &Store{rm: rm, db: db}
	if db != nil {
		s.h = db
	}
	return s
}

func (s *Store) Documents() documents.Repository         { return s.rm.Documents(s.h) }
func (s *Store) Delegates() delegates.Repository         { return s.rm.Delegates(s.h) }
func (s *Store) AccessEntries() accessentries.Repository { return s.rm.AccessEntries(s.h) }
func (s *Store) Audit() audit.Repository                 { return s.rm.Audit(s.h) }

// InTx runs fn with repositories that share one transaction. Without a
// database, or when already inside a transaction, fn runs directly.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &Store{rm: s.rm, h: tx})
	})
}
