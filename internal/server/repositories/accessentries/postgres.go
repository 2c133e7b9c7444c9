// Package accessentries stores explicit document grants to delegates.
package accessentries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/dbx"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, e *models.AccessControlEntry) error {
	query := `
		INSERT INTO access_entries (document_id, delegate_id, access_level, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, delegate_id)
		DO UPDATE SET access_level = EXCLUDED.access_level, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at`

	_, err := r.db.ExecContext(ctx, query, e.DocumentID, e.DelegateID, string(e.AccessLevel), e.GrantedAt, e.ExpiresAt)
	if dbx.IsInvalidInput(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert access entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, documentID, delegateID string) (*models.AccessControlEntry, error) {
	query := `SELECT document_id, delegate_id, access_level, granted_at, expires_at
		FROM access_entries WHERE document_id = $1 AND delegate_id = $2`

	var (
		e       models.AccessControlEntry
		level   string
		expires sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, documentID, delegateID).
		Scan(&e.DocumentID, &e.DelegateID, &level, &e.GrantedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidInput(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select access entry: %w", err)
	}
	e.AccessLevel = models.AccessLevel(level)
	if expires.Valid {
		t := expires.Time
		e.ExpiresAt = &t
	}
	return &e, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, documentID, delegateID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_entries WHERE document_id = $1 AND delegate_id = $2`, documentID, delegateID)
	if dbx.IsInvalidInput(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete access entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
