// Package delegates stores the delegates of estate owners, with an optional
// Redis read-through cache in front of the durable store.
package delegates

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

func (r *PostgresRepository) Upsert(ctx context.Context, d *models.Delegate) error {
	query := `
		INSERT INTO delegates (id, owner_id, role, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id, owner_id)
		DO UPDATE SET role = EXCLUDED.role, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at`

	if _, err := r.db.ExecContext(ctx, query, d.ID, d.OwnerID, string(d.Role), d.GrantedAt, d.ExpiresAt); err != nil {
		return fmt.Errorf("upsert delegate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, delegateID, ownerID string) (*models.Delegate, error) {
	query := `SELECT id, owner_id, role, granted_at, expires_at FROM delegates WHERE id = $1 AND owner_id = $2`

	d, err := scanDelegate(r.db.QueryRowContext(ctx, query, delegateID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select delegate: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, delegateID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM delegates WHERE id = $1 AND owner_id = $2`, delegateID, ownerID)
	if err != nil {
		return fmt.Errorf("delete delegate: %w", err)
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

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Delegate, error) {
	query := `SELECT id, owner_id, role, granted_at, expires_at FROM delegates WHERE owner_id = $1 ORDER BY granted_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select delegates: %w", err)
	}
	defer rows.Close()

	var result []*models.Delegate
	for rows.Next() {
		d, err := scanDelegate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelegate(s scanner) (*models.Delegate, error) {
	var (
		d       models.Delegate
		role    string
		expires sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.OwnerID, &role, &d.GrantedAt, &expires); err != nil {
		return nil, err
	}
	d.Role = models.DelegateRole(role)
	if expires.Valid {
		t := expires.Time
		d.ExpiresAt = &t
	}
	return &d, nil
}
