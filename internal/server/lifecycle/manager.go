// Package lifecycle implements the document lifecycle: the create pipeline
// (transfer, checksum verification, scan, encryption), reads, updates,
// two-phase deletes and delegate management. Every operation is authorized
// up front and leaves exactly one audit record behind.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/encryption"
	"github.com/dmitrijs2005/estatekeeper/internal/events"
	"github.com/dmitrijs2005/estatekeeper/internal/keymutex"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
	"github.com/dmitrijs2005/estatekeeper/internal/retry"
	"github.com/dmitrijs2005/estatekeeper/internal/scan"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/delegates"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/repomanager"
)

// Operation names used for metrics and logs.
const (
	opCreate         = "create"
	opGet            = "get"
	opUpdate         = "update"
	opDelete         = "delete"
	opList           = "list"
	opGrantDelegate  = "grant_delegate"
	opRevokeDelegate = "revoke_delegate"
	opGrantAccess    = "grant_access"
	opRevokeAccess   = "revoke_access"
)

type Authorizer interface {
	Authorize(ctx context.Context, actorID string, res access.Resource, required models.AccessLevel) (access.Decision, error)
}

type Auditor interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	Query(ctx context.Context, f audit.Filter) ([]models.AuditLogEntry, error)
}

type EncryptionWaiter interface {
	AwaitEncryption(ctx context.Context, handle string, pollInterval, timeout time.Duration, progress encryption.ProgressFunc) (encryption.Outcome, error)
}

// Observer counts finished operations by outcome.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

// cacheInvalidator is implemented by caching delegate repositories.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, delegateID, ownerID string) error
}

type Config struct {
	// MaxFileSize caps every per-type rule when positive.
	MaxFileSize            int64
	RetryAttempts          int
	RetryBaseDelay         time.Duration
	EncryptionPollInterval time.Duration
	EncryptionTimeout      time.Duration
	// EncryptionAttempts is the number of encryption waits; a TIMEOUT is
	// retried until it is used up.
	EncryptionAttempts int
	// OperationTimeout bounds the I/O stages of a single create or purge.
	OperationTimeout time.Duration
}

// DefaultConfig returns the settings used when the server config omits them.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:            50 * mb,
		RetryAttempts:          3,
		RetryBaseDelay:         200 * time.Millisecond,
		EncryptionPollInterval: 500 * time.Millisecond,
		EncryptionTimeout:      30 * time.Second,
		EncryptionAttempts:     2,
		OperationTimeout:       5 * time.Minute,
	}
}

// Deps are the collaborators of a Manager. Delegates may be a caching
// decorator over Store.Delegates(); Store is used for everything else.
type Deps struct {
	Store      *repomanager.Store
	Delegates  delegates.Repository
	Authorizer Authorizer
	Audit      Auditor
	Objects    objectstore.Store
	Encryption EncryptionWaiter
	Retry      *retry.Controller
	Scanner    scan.Scanner
	Events     events.Publisher
	Observer   Observer
	Logger     logging.Logger
	Rules      Rules
	Now        func() time.Time
}

type Manager struct {
	store     *repomanager.Store
	delegates delegates.Repository
	authz     Authorizer
	audit     Auditor
	objects   objectstore.Store
	enc       EncryptionWaiter
	retry     *retry.Controller
	scanner   scan.Scanner
	events    events.Publisher
	observer  Observer
	logger    logging.Logger
	rules     Rules
	now       func() time.Time
	cfg       Config

	locks   *keymutex.KeyMutex
	uploads *uploads
}

func NewManager(d Deps, cfg Config) *Manager {
	m := &Manager{
		store:     d.Store,
		delegates: d.Delegates,
		authz:     d.Authorizer,
		audit:     d.Audit,
		objects:   d.Objects,
		enc:       d.Encryption,
		retry:     d.Retry,
		scanner:   d.Scanner,
		events:    d.Events,
		observer:  d.Observer,
		logger:    d.Logger,
		rules:     d.Rules,
		now:       d.Now,
		cfg:       cfg,
		locks:     keymutex.New(),
	}
	if m.delegates == nil {
		m.delegates = d.Store.Delegates()
	}
	if m.retry == nil {
		m.retry = retry.NewController(nil)
	}
	if m.scanner == nil {
		m.scanner = scan.NopScanner{}
	}
	if m.events == nil {
		m.events = events.NopPublisher{}
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.logger == nil {
		m.logger = logging.NopLogger{}
	}
	m.logger = m.logger.With("module", "lifecycle")
	if m.rules == nil {
		m.rules = DefaultRules
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	m.uploads = newUploads(m.now)
	return m
}

// auditRecord describes the single audit entry an operation leaves.
type auditRecord struct {
	event        models.EventType
	outcome      models.Outcome
	actorID      string
	resourceType string
	resourceID   string
	details      map[string]any
}

// finish appends the audit record, counts the operation and returns opErr.
// The append is awaited and runs on a context detached from the caller's
// cancellation so an aborted request still leaves its trace. If the append
// of a successful operation fails, that failure is returned instead.
func (m *Manager) finish(ctx context.Context, op string, rec auditRecord, opErr error) error {
	e := &models.AuditLogEntry{
		EventType:    rec.event,
		ActorID:      rec.actorID,
		ResourceID:   rec.resourceID,
		ResourceType: rec.resourceType,
		Outcome:      rec.outcome,
		Details:      rec.details,
	}
	if opErr != nil && rec.outcome == models.OutcomeError {
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["error"] = opErr.Error()
	}

	auditErr := m.audit.Append(context.WithoutCancel(ctx), e)
	m.observer.ObserveOperation(op, string(rec.outcome))

	switch {
	case auditErr == nil:
		return opErr
	case opErr != nil:
		m.logger.Error(ctx, "audit append failed", "operation", op, "resource_id", rec.resourceID, "error", auditErr)
		return opErr
	default:
		return fmt.Errorf("record audit entry: %w", auditErr)
	}
}

// deny records a PERMISSION_DENIED entry and returns the error shown to the
// actor. Actors without a live relationship to the owner get ErrNotFound so
// they cannot probe for resources.
func (m *Manager) deny(ctx context.Context, op, actorID string, res access.Resource, required models.AccessLevel, d access.Decision) error {
	m.logger.Warn(ctx, "access denied", "operation", op, "actor_id", actorID, "resource_id", res.ID, "reason", d.Reason)

	err := fmt.Errorf("%w: %s on %s %s", common.ErrForbidden, required, res.Type, res.ID)
	if !d.Related() {
		err = fmt.Errorf("%w: %s %s", common.ErrNotFound, res.Type, res.ID)
	}
	return m.finish(ctx, op, auditRecord{
		event:        models.EventPermissionDenied,
		outcome:      models.OutcomeDenied,
		actorID:      actorID,
		resourceType: res.Type,
		resourceID:   res.ID,
		details: map[string]any{
			"operation": op,
			"required":  string(required),
			"effective": string(d.Effective),
			"reason":    string(d.Reason),
		},
	}, err)
}

// authorize runs the access check. ok is false when the operation must stop;
// err is then already audited and ready to return.
func (m *Manager) authorize(ctx context.Context, op string, event models.EventType, actorID string, res access.Resource, required models.AccessLevel) (bool, error) {
	d, err := m.authz.Authorize(ctx, actorID, res, required)
	if err != nil {
		return false, m.finish(ctx, op, auditRecord{
			event: event, outcome: models.OutcomeError, actorID: actorID,
			resourceType: res.Type, resourceID: res.ID,
		}, fmt.Errorf("authorize: %w", err))
	}
	if !d.Allowed {
		return false, m.deny(ctx, op, actorID, res, required, d)
	}
	m.logger.Debug(ctx, "access granted", "operation", op, "actor_id", actorID, "resource_id", res.ID, "effective", d.Effective)
	return true, nil
}

// loadLive fetches a document that has not been deleted.
func (m *Manager) loadLive(ctx context.Context, id string) (*models.Document, error) {
	doc, err := m.store.Documents().Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) || err == nil && doc.Status == models.StatusDeleted {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

func (m *Manager) publish(ctx context.Context, subject string, doc *models.Document, actorID string, cause error) {
	ev := events.DocumentEvent{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		ActorID:    actorID,
		Status:     string(doc.Status),
		Version:    doc.Version,
		At:         m.now(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := m.events.Publish(context.WithoutCancel(ctx), subject, ev); err != nil {
		m.logger.Warn(ctx, "event publish failed", "subject", subject, "document_id", doc.ID, "error", err)
	}
}

// QueryAuditLog returns audit entries matching f in timestamp order.
func (m *Manager) QueryAuditLog(ctx context.Context, f audit.Filter) ([]models.AuditLogEntry, error) {
	return m.audit.Query(ctx, f)
}

// UploadProgress reports the state of an upload started by actorID. Uploads
// of other actors are reported as not found. Once a terminal state has been
// returned the upload is forgotten.
func (m *Manager) UploadProgress(correlationID, actorID string) (models.UploadState, error) {
	s, ok := m.uploads.get(correlationID, actorID)
	if !ok {
		return models.UploadState{}, fmt.Errorf("%w: upload %s", common.ErrNotFound, correlationID)
	}
	return s, nil
}
