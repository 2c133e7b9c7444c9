// Package access evaluates (actor, resource, level) triples against the
// owner/delegate permission model.
//
// The engine is side-effect free: it only reads through the injected
// lookups and clock, and it neither logs nor audits. Callers record every
// decision.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// Delegates looks up the delegate record of delegateID for ownerID.
// It returns common.ErrNotFound when no such delegate exists.
type Delegates interface {
	Get(ctx context.Context, delegateID, ownerID string) (*models.Delegate, error)
}

// Entries looks up an explicit grant. It returns common.ErrNotFound when
// no entry exists.
type Entries interface {
	Get(ctx context.Context, documentID, delegateID string) (*models.AccessControlEntry, error)
}

// Resource is the target of an access check.
type Resource struct {
	ID string
	// Type is models.ResourceDocument or models.ResourceCollection.
	Type         string
	OwnerID      string
	DocumentType models.DocumentType
}

// DocumentResource describes d as an access-check target.
func DocumentResource(d *models.Document) Resource {
	return Resource{ID: d.ID, Type: models.ResourceDocument, OwnerID: d.OwnerID, DocumentType: d.Type}
}

// CollectionResource describes the whole document collection of ownerID.
func CollectionResource(ownerID string) Resource {
	return Resource{ID: ownerID, Type: models.ResourceCollection, OwnerID: ownerID}
}

// Reason explains a decision.
type Reason string

const (
	ReasonOwner        Reason = "owner"
	ReasonGranted      Reason = "granted"
	ReasonNoDelegate   Reason = "not_a_delegate"
	ReasonLapsed       Reason = "delegate_lapsed"
	ReasonInsufficient Reason = "insufficient_access"
)

// Decision is the result of Authorize.
type Decision struct {
	Allowed   bool
	Effective models.AccessLevel
	Reason    Reason
}

// Related reports whether the actor has a live relationship with the
// resource owner. Unrelated actors must not learn whether a resource exists.
func (d Decision) Related() bool {
	return d.Reason != ReasonNoDelegate && d.Reason != ReasonLapsed
}

// Engine is the access control engine.
type Engine struct {
	delegates Delegates
	entries   Entries
	baseline  Baseline
	now       func() time.Time
}

// NewEngine builds an Engine using DefaultBaseline. now may be nil.
func NewEngine(delegates Delegates, entries Entries, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{delegates: delegates, entries: entries, baseline: DefaultBaseline, now: now}
}

// Authorize decides whether actorID may act on res with the required level.
// An error is returned only when a lookup fails; denials are reported in the
// Decision.
func (e *Engine) Authorize(ctx context.Context, actorID string, res Resource, required models.AccessLevel) (Decision, error) {
	if actorID != "" && actorID == res.OwnerID {
		return decide(models.AccessManage, required, ReasonOwner), nil
	}

	now := e.now()

	delegate, err := e.delegates.Get(ctx, actorID, res.OwnerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Decision{Reason: ReasonNoDelegate}, nil
		}
		return Decision{}, fmt.Errorf("delegate lookup: %w", err)
	}
	if !delegate.Active(now) {
		return Decision{Reason: ReasonLapsed}, nil
	}

	if res.Type == models.ResourceCollection {
		return decide(models.AccessRead, required, ReasonGranted), nil
	}

	effective := e.baseline.Level(delegate.Role, res.DocumentType)

	entry, err := e.entries.Get(ctx, res.ID, actorID)
	switch {
	case err == nil:
		if entry.Active(now) {
			effective = models.MaxAccess(effective, entry.AccessLevel)
		}
	case !errors.Is(err, common.ErrNotFound):
		return Decision{}, fmt.Errorf("access entry lookup: %w", err)
	}

	return decide(effective, required, ReasonGranted), nil
}

func decide(effective, required models.AccessLevel, reason Reason) Decision {
	if !effective.Covers(required) {
		return Decision{Effective: effective, Reason: ReasonInsufficient}
	}
	return Decision{Allowed: true, Effective: effective, Reason: reason}
}
