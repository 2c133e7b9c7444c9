// Package audit records who did what to which resource. Entries are
// sanitized, timestamped, persisted and mirrored to the event bus.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/events"
	"github.com/dmitrijs2005/estatekeeper/internal/keymutex"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type Filter = models.AuditFilter

// Store persists audit entries. Append assigns the per-resource Sequence.
// Query returns entries ordered by timestamp, then sequence.
type Store interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	Query(ctx context.Context, f Filter) ([]models.AuditLogEntry, error)
}

type Pipeline struct {
	store  Store
	pub    events.Publisher
	logger logging.Logger
	now    func() time.Time

	locks *keymutex.KeyMutex
	mu    sync.Mutex
	last  map[string]time.Time
}

func NewPipeline(store Store, pub events.Publisher, logger logging.Logger) *Pipeline {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Pipeline{
		store:  store,
		pub:    pub,
		logger: logger.With("module", "audit"),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  keymutex.New(),
		last:   make(map[string]time.Time),
	}
}

// Append sanitizes and persists e, filling in ID, Timestamp and Sequence.
// It returns only after the store has accepted the entry. Publishing to
// the event bus happens afterwards and never fails the append.
func (p *Pipeline) Append(ctx context.Context, e *models.AuditLogEntry) error {
	if !e.EventType.Valid() || !e.Outcome.Valid() {
		return fmt.Errorf("%w: audit entry with event %q outcome %q", common.ErrValidation, e.EventType, e.Outcome)
	}
	if e.ResourceID == "" {
		return fmt.Errorf("%w: audit entry without resource", common.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Details = Sanitize(e.Details)

	unlock, err := p.locks.Lock(ctx, e.ResourceID)
	if err != nil {
		return err
	}
	e.Timestamp = p.stamp(e.ResourceID)
	err = p.store.Append(ctx, e)
	unlock()
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if err := p.pub.Publish(ctx, events.AuditSubject(string(e.EventType)), e); err != nil {
		p.logger.Warn(ctx, "audit mirror failed", "entry_id", e.ID, "error", err)
	}
	return nil
}

// stamp returns a timestamp that is not before the previous one issued for
// the same resource. Callers hold the resource lock.
func (p *Pipeline) stamp(resourceID string) time.Time {
	ts := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.last[resourceID]; ok && ts.Before(prev) {
		ts = prev
	}
	p.last[resourceID] = ts
	return ts
}

func (p *Pipeline) Query(ctx context.Context, f Filter) ([]models.AuditLogEntry, error) {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, fmt.Errorf("%w: empty time range", common.ErrValidation)
	}
	out, err := p.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return out, nil
}
