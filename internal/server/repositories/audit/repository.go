package audit

import (
	"context"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Repository is an append-only audit store. Append assigns the next
// Sequence for the entry's resource.
type Repository interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	Query(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error)
}
