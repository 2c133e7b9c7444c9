package documents

import (
	"context"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Repository persists documents. Implementations return copies, so callers
// may mutate what they get without affecting stored state.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	// Get returns common.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.Document, error)
	// Update overwrites the stored row only if its version still equals
	// expectedVersion; otherwise it returns common.ErrVersionConflict.
	Update(ctx context.Context, doc *models.Document, expectedVersion int64) error
	// ListByOwner returns the owner's documents ordered by creation time.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
}
