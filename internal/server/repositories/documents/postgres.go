// Package documents stores documents and their metadata.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/dbx"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

const columns = `id, owner_id, title, type, status, version, created_at, updated_at,
	file_name, file_size, mime_type, checksum_sha256, storage_location,
	encryption_status, retention_period_days, uploaded_at, last_modified`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	m := d.Metadata
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.OwnerID, d.Title, string(d.Type), string(d.Status), d.Version, d.CreatedAt, d.UpdatedAt,
		m.FileName, m.FileSize, m.MimeType, m.ChecksumSHA256, m.StorageLocation,
		m.EncryptionStatus, m.RetentionPeriodDays, nullTime(m.UploadedAt), nullTime(m.LastModified),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + columns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidInput(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *models.Document, expectedVersion int64) error {
	query := `
		UPDATE documents SET
			title = $3, status = $4, version = $5, updated_at = $6,
			checksum_sha256 = $7, storage_location = $8, encryption_status = $9,
			retention_period_days = $10, uploaded_at = $11, last_modified = $12
		WHERE id = $1 AND version = $2`

	m := d.Metadata
	res, err := r.db.ExecContext(ctx, query,
		d.ID, expectedVersion,
		d.Title, string(d.Status), d.Version, d.UpdatedAt,
		m.ChecksumSHA256, m.StorageLocation, m.EncryptionStatus,
		m.RetentionPeriodDays, nullTime(m.UploadedAt), nullTime(m.LastModified),
	)
	if dbx.IsInvalidInput(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	query := `SELECT ` + columns + ` FROM documents WHERE owner_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
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

func scanDocument(s scanner) (*models.Document, error) {
	var (
		d                      models.Document
		typ, status            string
		uploaded, lastModified sql.NullTime
	)
	m := &d.Metadata
	err := s.Scan(
		&d.ID, &d.OwnerID, &d.Title, &typ, &status, &d.Version, &d.CreatedAt, &d.UpdatedAt,
		&m.FileName, &m.FileSize, &m.MimeType, &m.ChecksumSHA256, &m.StorageLocation,
		&m.EncryptionStatus, &m.RetentionPeriodDays, &uploaded, &lastModified,
	)
	if err != nil {
		return nil, err
	}
	d.Type = models.DocumentType(typ)
	d.Status = models.DocumentStatus(status)
	m.UploadedAt = uploaded.Time
	m.LastModified = lastModified.Time
	return &d, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
