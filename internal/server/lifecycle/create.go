package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/checksum"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/encryption"
	"github.com/dmitrijs2005/estatekeeper/internal/events"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/retry"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// CreateRequest carries a new document and its content.
type CreateRequest struct {
	// CorrelationID lets the caller poll UploadProgress while the create
	// runs. One is generated when empty.
	CorrelationID string
	OwnerID       string
	ActorID       string
	Title         string
	Type          models.DocumentType
	FileName      string
	FileSize      int64
	MimeType      string
	// ChecksumSHA256 is the optional digest declared by the client. Without
	// it the stored bytes are verified against the digest taken before
	// transfer.
	ChecksumSHA256      string
	RetentionPeriodDays int
	Content             []byte
}

// CreateDocument runs the full upload pipeline and returns the COMPLETED
// document. Any failure after the document was persisted leaves it in
// ERROR.
func (m *Manager) CreateDocument(ctx context.Context, req CreateRequest) (*models.Document, error) {
	collection := access.CollectionResource(req.OwnerID)
	if ok, err := m.authorize(ctx, opCreate, models.EventUpload, req.ActorID, collection, models.AccessWrite); !ok {
		return nil, err
	}

	rejected := auditRecord{
		event: models.EventUpload, outcome: models.OutcomeError, actorID: req.ActorID,
		resourceType: collection.Type, resourceID: collection.ID,
		details: map[string]any{"file_name": req.FileName, "document_type": string(req.Type)},
	}
	if err := m.rules.validate(&req, m.cfg.MaxFileSize); err != nil {
		return nil, m.finish(ctx, opCreate, rejected, err)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	if !m.uploads.reserve(req.CorrelationID, req.ActorID) {
		return nil, m.finish(ctx, opCreate, rejected, invalid("correlation id %s already in use", req.CorrelationID))
	}

	now := m.now()
	doc := &models.Document{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		Type:      req.Type,
		Status:    models.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: models.DocumentMetadata{
			FileName:            req.FileName,
			FileSize:            req.FileSize,
			MimeType:            req.MimeType,
			RetentionPeriodDays: req.RetentionPeriodDays,
		},
	}

	unlock, err := m.locks.Lock(ctx, doc.ID)
	if err != nil {
		m.uploads.release(req.CorrelationID)
		return nil, m.finish(ctx, opCreate, rejected, err)
	}
	defer unlock()

	if err := m.store.Documents().Create(ctx, doc); err != nil {
		m.uploads.release(req.CorrelationID)
		return nil, m.finish(ctx, opCreate, rejected, fmt.Errorf("persist document: %w", err))
	}
	m.uploads.attach(req.CorrelationID, doc.ID)
	ctx = logging.ContextWith(ctx, "correlation_id", req.CorrelationID, "document_id", doc.ID)

	p := &pipeline{m: m, req: &req, doc: doc}
	if err := p.run(ctx); err != nil {
		return nil, p.fail(ctx, err)
	}

	m.uploads.update(req.CorrelationID, func(s *models.UploadState) {
		s.EncryptionProgressPercent = 100
	})
	m.publish(ctx, events.SubjectDocumentCompleted, p.doc, req.ActorID, nil)
	m.logger.Info(ctx, "document completed", "owner_id", doc.OwnerID, "retries", p.retries)

	err = m.finish(ctx, opCreate, auditRecord{
		event: models.EventUpload, outcome: models.OutcomeAllowed, actorID: req.ActorID,
		resourceType: models.ResourceDocument, resourceID: doc.ID,
		details: p.details(),
	}, nil)
	if err != nil {
		return nil, err
	}
	return p.doc.Clone(), nil
}

// pipeline is the state of one create run.
type pipeline struct {
	m       *Manager
	req     *CreateRequest
	doc     *models.Document
	retries int
}

func (p *pipeline) details() map[string]any {
	return map[string]any{
		"correlation_id": p.req.CorrelationID,
		"file_name":      p.doc.Metadata.FileName,
		"file_size":      p.doc.Metadata.FileSize,
		"mime_type":      p.doc.Metadata.MimeType,
		"document_type":  string(p.doc.Type),
		"status":         string(p.doc.Status),
		"retry_count":    p.retries,
	}
}

func (p *pipeline) run(ctx context.Context) error {
	m := p.m
	if m.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.OperationTimeout)
		defer cancel()
	}

	expected := strings.ToLower(p.req.ChecksumSHA256)
	if expected == "" {
		expected = checksum.Digest(p.req.Content)
	}

	if err := p.advance(ctx, models.StatusUploading); err != nil {
		return err
	}
	handle, err := p.transfer(ctx)
	if err != nil {
		return err
	}
	p.doc.Metadata.StorageLocation = handle
	p.doc.Metadata.UploadedAt = m.now()

	if err := p.advance(ctx, models.StatusProcessing); err != nil {
		return err
	}
	data, err := p.verify(ctx, handle, expected)
	if err != nil {
		return err
	}
	p.doc.Metadata.ChecksumSHA256 = expected
	if err := p.scan(ctx, data); err != nil {
		return err
	}

	if err := p.advance(ctx, models.StatusEncrypting); err != nil {
		return err
	}
	if err := p.awaitEncryption(ctx, handle); err != nil {
		return err
	}
	p.doc.Metadata.EncryptionStatus = true
	p.doc.Metadata.LastModified = m.now()

	return p.advance(ctx, models.StatusCompleted)
}

// advance persists the next pipeline status. Pipeline transitions keep the
// version but are written with the optimistic check.
func (p *pipeline) advance(ctx context.Context, status models.DocumentStatus) error {
	next := p.doc.Clone()
	if err := next.TransitionTo(status, p.m.now()); err != nil {
		return err
	}
	if err := p.m.store.Documents().Update(ctx, next, p.doc.Version); err != nil {
		return fmt.Errorf("persist %s: %w", status, err)
	}
	p.doc = next
	p.m.uploads.update(p.req.CorrelationID, func(s *models.UploadState) {
		s.Status = status
		s.ProgressPercent = progressFor(status)
	})
	return nil
}

func (p *pipeline) onRetry(a retry.Attempt) {
	p.retries++
	p.m.logger.Warn(context.Background(), "retrying", "operation", a.Operation, "attempt", a.Number, "delay", a.Delay, "error", a.Err)
	p.m.uploads.update(p.req.CorrelationID, func(s *models.UploadState) {
		s.RetryCount++
		s.LastError = a.Err.Error()
	})
}

func (p *pipeline) execute(ctx context.Context, name string, attempts int, op retry.Operation) error {
	return p.m.retry.Execute(ctx, name, attempts, p.m.cfg.RetryBaseDelay, op, p.onRetry)
}

func (p *pipeline) transfer(ctx context.Context) (string, error) {
	var handle string
	err := p.execute(ctx, "transfer", p.m.cfg.RetryAttempts, func(ctx context.Context) error {
		h, err := p.m.objects.Put(ctx, p.req.Content, p.req.MimeType)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return "", exhaustedAs(common.ErrUpload, "transfer", err)
	}
	return handle, nil
}

// verify reads the stored bytes back and compares their digest with
// expected. A mismatch is final.
func (p *pipeline) verify(ctx context.Context, handle, expected string) ([]byte, error) {
	var data []byte
	err := p.execute(ctx, "verify", p.m.cfg.RetryAttempts, func(ctx context.Context) error {
		b, err := p.m.objects.Get(ctx, handle)
		if err != nil {
			return err
		}
		if !checksum.Verify(b, expected) {
			return retry.Permanent(fmt.Errorf("%w: stored content digest %s does not match %s",
				common.ErrIntegrity, checksum.Digest(b), expected))
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, exhaustedAs(common.ErrUpload, "verify", err)
	}
	return data, nil
}

func (p *pipeline) scan(ctx context.Context, data []byte) error {
	err := p.execute(ctx, "scan", p.m.cfg.RetryAttempts, func(ctx context.Context) error {
		err := p.m.scanner.Scan(ctx, data)
		if errors.Is(err, common.ErrIntegrity) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return exhaustedAs(common.ErrUpload, "scan", err)
	}
	return nil
}

func (p *pipeline) awaitEncryption(ctx context.Context, handle string) error {
	m := p.m
	progress := func(percent int) {
		m.uploads.update(p.req.CorrelationID, func(s *models.UploadState) {
			s.EncryptionProgressPercent = percent
			s.ProgressPercent = progressFor(models.StatusEncrypting) + percent*30/100
		})
	}

	attempts := m.cfg.EncryptionAttempts
	if attempts < 1 {
		attempts = 1
	}
	err := p.execute(ctx, "encryption", attempts, func(ctx context.Context) error {
		outcome, err := m.enc.AwaitEncryption(ctx, handle, m.cfg.EncryptionPollInterval, m.cfg.EncryptionTimeout, progress)
		if err != nil {
			return err
		}
		switch outcome {
		case encryption.OutcomeCompleted:
			return nil
		case encryption.OutcomeFailed:
			return retry.Permanent(fmt.Errorf("%w: storage backend failed to encrypt %s", common.ErrUpload, handle))
		default:
			return fmt.Errorf("%w: object %s not encrypted within %s", common.ErrTimeout, handle, m.cfg.EncryptionTimeout)
		}
	})
	if err != nil {
		return fmt.Errorf("await encryption: %w", err)
	}
	return nil
}

// exhaustedAs tags an exhausted retry loop with the taxonomy sentinel while
// keeping the *retry.ExhaustedError matchable. Other errors pass through.
func exhaustedAs(sentinel error, stage string, err error) error {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// fail moves the document to ERROR and records the failed upload. Writes
// use a context detached from the caller so a cancelled request still
// settles the document.
func (p *pipeline) fail(ctx context.Context, cause error) error {
	m := p.m
	wctx := context.WithoutCancel(ctx)

	if errors.Is(cause, common.ErrIntegrity) && p.doc.Metadata.StorageLocation != "" {
		if err := m.objects.Delete(wctx, p.doc.Metadata.StorageLocation); err != nil {
			m.logger.Warn(ctx, "rejected object cleanup failed", "document_id", p.doc.ID, "error", err)
		} else {
			p.doc.Metadata.StorageLocation = ""
		}
	}

	if p.doc.Status.CanTransitionTo(models.StatusError) {
		next := p.doc.Clone()
		if err := next.TransitionTo(models.StatusError, m.now()); err == nil {
			if err := m.store.Documents().Update(wctx, next, p.doc.Version); err != nil {
				m.logger.Error(ctx, "failed to mark document as errored", "document_id", p.doc.ID, "error", err)
			} else {
				p.doc = next
			}
		}
	}

	m.uploads.update(p.req.CorrelationID, func(s *models.UploadState) {
		s.Status = models.StatusError
		s.LastError = cause.Error()
	})
	m.publish(ctx, events.SubjectDocumentFailed, p.doc, p.req.ActorID, cause)
	m.logger.Error(ctx, "document upload failed", "document_id", p.doc.ID, "error", cause)

	return m.finish(ctx, opCreate, auditRecord{
		event: models.EventUpload, outcome: models.OutcomeError, actorID: p.req.ActorID,
		resourceType: models.ResourceDocument, resourceID: p.doc.ID,
		details: p.details(),
	}, cause)
}
