package delegates

import (
	"context"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Repository persists delegates keyed by (delegate, owner).
type Repository interface {
	// Upsert creates the delegate or replaces its role and expiry.
	Upsert(ctx context.Context, d *models.Delegate) error
	// Get returns common.ErrNotFound if the actor is not a delegate of owner.
	Get(ctx context.Context, delegateID, ownerID string) (*models.Delegate, error)
	// Delete revokes the delegate. Revoking an unknown delegate returns
	// common.ErrNotFound.
	Delete(ctx context.Context, delegateID, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Delegate, error)
}
