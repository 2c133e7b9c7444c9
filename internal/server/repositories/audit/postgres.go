// Package audit stores audit log entries. The store exposes no update or
// delete path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/estatekeeper/internal/dbx"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append bumps the per-resource counter and inserts the entry in a single
// statement, so two writers never observe the same sequence.
func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	query := `
		WITH seq AS (
			INSERT INTO audit_sequences (resource_id, last_seq) VALUES ($1, 1)
			ON CONFLICT (resource_id) DO UPDATE SET last_seq = audit_sequences.last_seq + 1
			RETURNING last_seq
		)
		INSERT INTO audit_log (id, sequence, event_type, actor_id, resource_id, resource_type, ts, outcome, details)
		SELECT $2, seq.last_seq, $3, $4, $1, $5, $6, $7, $8 FROM seq
		RETURNING sequence`

	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = b
	}

	err := r.db.QueryRowContext(ctx, query,
		e.ResourceID, e.ID, string(e.EventType), e.ActorID, e.ResourceType, e.Timestamp, string(e.Outcome), details,
	).Scan(&e.Sequence)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.EventType != "" {
		add("event_type = $%d", string(f.EventType))
	}
	if f.From != nil {
		add("ts >= $%d", *f.From)
	}
	if f.To != nil {
		add("ts <= $%d", *f.To)
	}

	query := `SELECT id, sequence, event_type, actor_id, resource_id, resource_type, ts, outcome, details FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts, sequence, position"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit entries: %w", err)
	}
	defer rows.Close()

	var result []models.AuditLogEntry
	for rows.Next() {
		var (
			e                  models.AuditLogEntry
			eventType, outcome string
			details            []byte
		)
		if err := rows.Scan(&e.ID, &e.Sequence, &eventType, &e.ActorID, &e.ResourceID, &e.ResourceType,
			&e.Timestamp, &outcome, &details); err != nil {
			return nil, err
		}
		e.EventType = models.EventType(eventType)
		e.Outcome = models.Outcome(outcome)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details of %s: %w", e.ID, err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
