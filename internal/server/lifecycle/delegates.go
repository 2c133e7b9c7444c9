package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/repomanager"
)

func permissionRecord(outcome models.Outcome, actorID, resourceType, resourceID string, details map[string]any) auditRecord {
	return auditRecord{
		event: models.EventPermissionChange, outcome: outcome, actorID: actorID,
		resourceType: resourceType, resourceID: resourceID, details: details,
	}
}

// requireOwner lets only the owner manage delegates of their estate.
func (m *Manager) requireOwner(ctx context.Context, op, ownerID, actorID, delegateID string) error {
	if actorID != "" && actorID == ownerID {
		return nil
	}
	d, err := m.authz.Authorize(ctx, actorID, access.CollectionResource(ownerID), models.AccessManage)
	if err != nil {
		return m.finish(ctx, op, permissionRecord(models.OutcomeError, actorID, models.ResourceDelegate, delegateID, nil),
			fmt.Errorf("authorize: %w", err))
	}
	res := access.Resource{ID: delegateID, Type: models.ResourceDelegate, OwnerID: ownerID}
	return m.deny(ctx, op, actorID, res, models.AccessManage, d)
}

func (m *Manager) invalidateDelegate(ctx context.Context, delegateID, ownerID string) {
	c, ok := m.delegates.(cacheInvalidator)
	if !ok {
		return
	}
	if err := c.Invalidate(context.WithoutCancel(ctx), delegateID, ownerID); err != nil {
		m.logger.Warn(ctx, "delegate cache invalidation failed", "delegate_id", delegateID, "error", err)
	}
}

func timeDetail(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// GrantDelegate makes delegateID a delegate of ownerID with role, or changes
// the role and expiry of an existing delegate.
func (m *Manager) GrantDelegate(ctx context.Context, ownerID, actorID, delegateID string, role models.DelegateRole, expiresAt *time.Time) (*models.Delegate, error) {
	if err := m.requireOwner(ctx, opGrantDelegate, ownerID, actorID, delegateID); err != nil {
		return nil, err
	}
	details := map[string]any{"action": "grant_delegate", "owner_id": ownerID, "role": string(role), "expires_at": timeDetail(expiresAt)}
	failed := permissionRecord(models.OutcomeError, actorID, models.ResourceDelegate, delegateID, details)

	now := m.now()
	switch {
	case delegateID == "" || delegateID == ownerID:
		return nil, m.finish(ctx, opGrantDelegate, failed, invalid("delegate must be a different party than the owner"))
	case !role.Valid():
		return nil, m.finish(ctx, opGrantDelegate, failed, invalid("unknown delegate role %q", role))
	case expiresAt != nil && !expiresAt.After(now):
		return nil, m.finish(ctx, opGrantDelegate, failed, invalid("expiry must be in the future"))
	}

	d := &models.Delegate{ID: delegateID, Role: role, OwnerID: ownerID, GrantedAt: now, ExpiresAt: expiresAt}
	if err := m.delegates.Upsert(ctx, d); err != nil {
		return nil, m.finish(ctx, opGrantDelegate, failed, fmt.Errorf("store delegate: %w", err))
	}

	rec := failed
	rec.outcome = models.OutcomeAllowed
	if err := m.finish(ctx, opGrantDelegate, rec, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// RevokeDelegate removes the delegate and every explicit grant it holds on
// the owner's documents in one transaction.
func (m *Manager) RevokeDelegate(ctx context.Context, ownerID, actorID, delegateID string) error {
	if err := m.requireOwner(ctx, opRevokeDelegate, ownerID, actorID, delegateID); err != nil {
		return err
	}

	removed := 0
	err := m.store.InTx(ctx, func(ctx context.Context, tx *repomanager.Store) error {
		if err := tx.Delegates().Delete(ctx, delegateID, ownerID); err != nil {
			return err
		}
		docs, err := tx.Documents().ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, d := range docs {
			err := tx.AccessEntries().Delete(ctx, d.ID, delegateID)
			switch {
			case err == nil:
				removed++
			case !errors.Is(err, common.ErrNotFound):
				return err
			}
		}
		return nil
	})
	m.invalidateDelegate(ctx, delegateID, ownerID)

	details := map[string]any{"action": "revoke_delegate", "owner_id": ownerID, "entries_removed": removed}
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			err = fmt.Errorf("revoke delegate: %w", err)
		}
		return m.finish(ctx, opRevokeDelegate, permissionRecord(models.OutcomeError, actorID, models.ResourceDelegate, delegateID, details), err)
	}
	return m.finish(ctx, opRevokeDelegate, permissionRecord(models.OutcomeAllowed, actorID, models.ResourceDelegate, delegateID, details), nil)
}

// GrantAccess gives delegateID an explicit level on one document. It needs
// MANAGE on the document and an active delegate of the document's owner.
func (m *Manager) GrantAccess(ctx context.Context, documentID, actorID, delegateID string, level models.AccessLevel, expiresAt *time.Time) (*models.AccessControlEntry, error) {
	details := map[string]any{"action": "grant_access", "delegate_id": delegateID, "access_level": string(level), "expires_at": timeDetail(expiresAt)}
	failed := permissionRecord(models.OutcomeError, actorID, models.ResourceDocument, documentID, details)

	doc, err := m.loadLive(ctx, documentID)
	if err != nil {
		return nil, m.finish(ctx, opGrantAccess, failed, err)
	}
	if ok, err := m.authorize(ctx, opGrantAccess, models.EventPermissionChange, actorID, access.DocumentResource(doc), models.AccessManage); !ok {
		return nil, err
	}

	now := m.now()
	if !level.Valid() {
		return nil, m.finish(ctx, opGrantAccess, failed, invalid("unknown access level %q", level))
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, m.finish(ctx, opGrantAccess, failed, invalid("expiry must be in the future"))
	}
	dl, err := m.delegates.Get(ctx, delegateID, doc.OwnerID)
	switch {
	case errors.Is(err, common.ErrNotFound) || err == nil && !dl.Active(now):
		return nil, m.finish(ctx, opGrantAccess, failed, invalid("%s is not an active delegate of the owner", delegateID))
	case err != nil:
		return nil, m.finish(ctx, opGrantAccess, failed, fmt.Errorf("delegate lookup: %w", err))
	}

	e := &models.AccessControlEntry{DocumentID: documentID, DelegateID: delegateID, AccessLevel: level, GrantedAt: now, ExpiresAt: expiresAt}
	if err := m.store.AccessEntries().Upsert(ctx, e); err != nil {
		return nil, m.finish(ctx, opGrantAccess, failed, fmt.Errorf("store access entry: %w", err))
	}

	rec := failed
	rec.outcome = models.OutcomeAllowed
	if err := m.finish(ctx, opGrantAccess, rec, nil); err != nil {
		return nil, err
	}
	return e, nil
}

// RevokeAccess removes the explicit grant of delegateID on a document.
func (m *Manager) RevokeAccess(ctx context.Context, documentID, actorID, delegateID string) error {
	details := map[string]any{"action": "revoke_access", "delegate_id": delegateID}
	failed := permissionRecord(models.OutcomeError, actorID, models.ResourceDocument, documentID, details)

	doc, err := m.loadLive(ctx, documentID)
	if err != nil {
		return m.finish(ctx, opRevokeAccess, failed, err)
	}
	if ok, err := m.authorize(ctx, opRevokeAccess, models.EventPermissionChange, actorID, access.DocumentResource(doc), models.AccessManage); !ok {
		return err
	}

	if err := m.store.AccessEntries().Delete(ctx, documentID, delegateID); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			err = fmt.Errorf("delete access entry: %w", err)
		}
		return m.finish(ctx, opRevokeAccess, failed, err)
	}

	rec := failed
	rec.outcome = models.OutcomeAllowed
	return m.finish(ctx, opRevokeAccess, rec, nil)
}
