package accessentries

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]models.AccessControlEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.AccessControlEntry)}
}

func key(documentID, delegateID string) string { return documentID + "/" + delegateID }

func (r *MemoryRepository) Upsert(ctx context.Context, e *models.AccessControlEntry) error {
	c := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key(e.DocumentID, e.DelegateID)] = c
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, documentID, delegateID string) (*models.AccessControlEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[key(documentID, delegateID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		e.ExpiresAt = &t
	}
	return &e, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, documentID, delegateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(documentID, delegateID)
	if _, ok := r.items[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.items, k)
	return nil
}
