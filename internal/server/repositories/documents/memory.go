package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// MemoryRepository keeps documents in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]*models.Document)}
}

func (r *MemoryRepository) Create(ctx context.Context, d *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.ID]; ok {
		return fmt.Errorf("document %s already exists", d.ID)
	}
	r.docs[d.ID] = d.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return d.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *models.Document, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.docs[d.ID]
	if !ok || cur.Version != expectedVersion {
		return common.ErrVersionConflict
	}
	r.docs[d.ID] = d.Clone()
	return nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
