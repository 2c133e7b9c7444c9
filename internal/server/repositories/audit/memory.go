package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// MemoryRepository keeps the audit log in process memory. Stored entries
// never share Details with callers.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []models.AuditLogEntry
	seq     map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seq: make(map[string]int64)}
}

func (r *MemoryRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[e.ResourceID]++
	e.Sequence = r.seq[e.ResourceID]
	r.entries = append(r.entries, e.Clone())
	return nil
}

func (r *MemoryRepository) Query(ctx context.Context, f models.AuditFilter) ([]models.AuditLogEntry, error) {
	r.mu.RLock()
	var out []models.AuditLogEntry
	for i := range r.entries {
		if f.Matches(&r.entries[i]) {
			out = append(out, r.entries[i].Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}
