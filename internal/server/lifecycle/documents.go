package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/events"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Patch lists the mutable fields of a document. Nil fields are unchanged.
type Patch struct {
	Title               *string
	RetentionPeriodDays *int
}

// ListFilter narrows ListDocuments. Zero values match everything.
type ListFilter struct {
	Type   models.DocumentType
	Status models.DocumentStatus
}

func (f ListFilter) matches(d *models.Document) bool {
	return (f.Type == "" || d.Type == f.Type) && (f.Status == "" || d.Status == f.Status)
}

func documentRecord(event models.EventType, outcome models.Outcome, actorID, id string) auditRecord {
	return auditRecord{
		event: event, outcome: outcome, actorID: actorID,
		resourceType: models.ResourceDocument, resourceID: id,
	}
}

// GetDocument returns the document if actorID may READ it.
func (m *Manager) GetDocument(ctx context.Context, id, actorID string) (*models.Document, error) {
	doc, err := m.loadLive(ctx, id)
	if err != nil {
		return nil, m.finish(ctx, opGet, documentRecord(models.EventAccess, models.OutcomeError, actorID, id), err)
	}
	if ok, err := m.authorize(ctx, opGet, models.EventAccess, actorID, access.DocumentResource(doc), models.AccessRead); !ok {
		return nil, err
	}

	rec := documentRecord(models.EventAccess, models.OutcomeAllowed, actorID, id)
	rec.details = map[string]any{"version": doc.Version}
	if err := m.finish(ctx, opGet, rec, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument applies patch to a COMPLETED document and bumps its
// version. The audit record holds the from/to diff of changed fields.
func (m *Manager) UpdateDocument(ctx context.Context, id, actorID string, patch Patch) (*models.Document, error) {
	failed := documentRecord(models.EventUpdate, models.OutcomeError, actorID, id)

	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return nil, m.finish(ctx, opUpdate, failed, err)
	}
	defer unlock()

	doc, err := m.loadLive(ctx, id)
	if err != nil {
		return nil, m.finish(ctx, opUpdate, failed, err)
	}
	if ok, err := m.authorize(ctx, opUpdate, models.EventUpdate, actorID, access.DocumentResource(doc), models.AccessWrite); !ok {
		return nil, err
	}

	if doc.Status != models.StatusCompleted {
		return nil, m.finish(ctx, opUpdate, failed, invalid("document %s is %s, only COMPLETED documents can be updated", id, doc.Status))
	}
	next, diff, err := applyPatch(doc, patch)
	if err != nil {
		return nil, m.finish(ctx, opUpdate, failed, err)
	}

	now := m.now()
	next.Version = doc.Version + 1
	next.UpdatedAt = now
	next.Metadata.LastModified = now
	if err := m.store.Documents().Update(ctx, next, doc.Version); err != nil {
		return nil, m.finish(ctx, opUpdate, failed, fmt.Errorf("persist update: %w", err))
	}

	diff["version"] = map[string]any{"from": doc.Version, "to": next.Version}
	rec := documentRecord(models.EventUpdate, models.OutcomeAllowed, actorID, id)
	rec.details = diff
	if err := m.finish(ctx, opUpdate, rec, nil); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func applyPatch(doc *models.Document, patch Patch) (*models.Document, map[string]any, error) {
	if patch.Title == nil && patch.RetentionPeriodDays == nil {
		return nil, nil, invalid("empty patch")
	}
	next := doc.Clone()
	diff := map[string]any{}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, nil, invalid("title must be 1..%d characters", maxTitleLen)
		}
		if title != doc.Title {
			diff["title"] = map[string]any{"from": doc.Title, "to": title}
			next.Title = title
		}
	}
	if patch.RetentionPeriodDays != nil {
		days := *patch.RetentionPeriodDays
		if days < 1 || days > maxRetention {
			return nil, nil, invalid("retention period must be 1..%d days", maxRetention)
		}
		if days != doc.Metadata.RetentionPeriodDays {
			diff["retention_period_days"] = map[string]any{"from": doc.Metadata.RetentionPeriodDays, "to": days}
			next.Metadata.RetentionPeriodDays = days
		}
	}
	if len(diff) == 0 {
		return nil, nil, invalid("patch does not change the document")
	}
	return next, diff, nil
}

// DeleteDocument marks the document DELETED and then purges its stored
// object. A purge that keeps failing is reported as ErrPurge; the document
// stays DELETED either way.
func (m *Manager) DeleteDocument(ctx context.Context, id, actorID string) error {
	failed := documentRecord(models.EventDelete, models.OutcomeError, actorID, id)

	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return m.finish(ctx, opDelete, failed, err)
	}
	defer unlock()

	doc, err := m.loadLive(ctx, id)
	if err != nil {
		return m.finish(ctx, opDelete, failed, err)
	}
	if ok, err := m.authorize(ctx, opDelete, models.EventDelete, actorID, access.DocumentResource(doc), models.AccessManage); !ok {
		return err
	}
	if !doc.Status.CanTransitionTo(models.StatusDeleted) {
		return m.finish(ctx, opDelete, failed, invalid("document %s is %s and cannot be deleted yet", id, doc.Status))
	}

	next := doc.Clone()
	if err := next.TransitionTo(models.StatusDeleted, m.now()); err != nil {
		return m.finish(ctx, opDelete, failed, err)
	}
	next.Version = doc.Version + 1
	if err := m.store.Documents().Update(ctx, next, doc.Version); err != nil {
		return m.finish(ctx, opDelete, failed, fmt.Errorf("mark deleted: %w", err))
	}
	m.publish(ctx, events.SubjectDocumentDeleted, next, actorID, nil)

	details := map[string]any{"version": next.Version, "previous_status": string(doc.Status)}
	if err := m.purge(ctx, next.Metadata.StorageLocation); err != nil {
		m.logger.Error(ctx, "purge failed", "document_id", id, "error", err)
		rec := failed
		rec.details = details
		return m.finish(ctx, opDelete, rec, err)
	}

	rec := documentRecord(models.EventDelete, models.OutcomeAllowed, actorID, id)
	rec.details = details
	return m.finish(ctx, opDelete, rec, nil)
}

func (m *Manager) purge(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if m.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.OperationTimeout)
		defer cancel()
	}

	err := m.retry.Execute(ctx, "purge", m.cfg.RetryAttempts, m.cfg.RetryBaseDelay, func(ctx context.Context) error {
		return m.objects.Delete(ctx, handle)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPurge, err)
	}
	return nil
}

// ListDocuments returns the owner's documents that actorID may READ.
// Documents failing the individual check are left out silently.
func (m *Manager) ListDocuments(ctx context.Context, ownerID, actorID string, filter ListFilter) ([]*models.Document, error) {
	collection := access.CollectionResource(ownerID)
	if ok, err := m.authorize(ctx, opList, models.EventAccess, actorID, collection, models.AccessRead); !ok {
		return nil, err
	}
	failed := auditRecord{
		event: models.EventAccess, outcome: models.OutcomeError, actorID: actorID,
		resourceType: collection.Type, resourceID: collection.ID,
	}

	all, err := m.store.Documents().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, m.finish(ctx, opList, failed, fmt.Errorf("list documents: %w", err))
	}

	out := make([]*models.Document, 0, len(all))
	for _, d := range all {
		if d.Status == models.StatusDeleted || !filter.matches(d) {
			continue
		}
		dec, err := m.authz.Authorize(ctx, actorID, access.DocumentResource(d), models.AccessRead)
		if err != nil {
			return nil, m.finish(ctx, opList, failed, fmt.Errorf("authorize: %w", err))
		}
		if dec.Allowed {
			out = append(out, d)
		}
	}

	rec := failed
	rec.outcome = models.OutcomeAllowed
	rec.details = map[string]any{"count": len(out), "type": string(filter.Type), "status": string(filter.Status)}
	if err := m.finish(ctx, opList, rec, nil); err != nil {
		return nil, err
	}
	return out, nil
}
