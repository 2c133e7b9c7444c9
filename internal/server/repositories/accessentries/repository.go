package accessentries

import (
	"context"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Repository persists explicit per-document grants keyed by
// (document, delegate).
type Repository interface {
	Upsert(ctx context.Context, e *models.AccessControlEntry) error
	// Get returns common.ErrNotFound when no entry exists.
	Get(ctx context.Context, documentID, delegateID string) (*models.AccessControlEntry, error)
	// Delete returns common.ErrNotFound when no entry exists.
	Delete(ctx context.Context, documentID, delegateID string) error
}
