package delegates

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]models.Delegate
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.Delegate)}
}

func key(delegateID, ownerID string) string { return ownerID + "/" + delegateID }

func copyDelegate(d models.Delegate) *models.Delegate {
	if d.ExpiresAt != nil {
		t := *d.ExpiresAt
		d.ExpiresAt = &t
	}
	return &d
}

func (r *MemoryRepository) Upsert(ctx context.Context, d *models.Delegate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key(d.ID, d.OwnerID)] = *copyDelegate(*d)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, delegateID, ownerID string) (*models.Delegate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[key(delegateID, ownerID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyDelegate(d), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, delegateID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(delegateID, ownerID)
	if _, ok := r.items[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.items, k)
	return nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Delegate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Delegate
	for _, d := range r.items {
		if d.OwnerID == ownerID {
			out = append(out, copyDelegate(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].GrantedAt.Before(out[j].GrantedAt)
	})
	return out, nil
}
