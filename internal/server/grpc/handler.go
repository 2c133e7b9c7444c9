package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/estatekeeper/internal/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/estatekeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

var _ DocumentServiceServer = (*GRPCServer)(nil)

func (s *GRPCServer) actor(ctx context.Context) (*auth.Claims, error) {
	c, ok := claimsFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return c, nil
}

// fail logs errors that map to Internal and converts err to a status.
func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	switch status.Code(st) {
	case codes.Internal:
		s.logger.Error(ctx, "operation failed", "operation", op, "error", err)
	case codes.Unavailable, codes.DataLoss, codes.DeadlineExceeded:
		s.logger.Warn(ctx, "operation failed", "operation", op, "error", err)
	}
	return st
}

func ownerOr(ownerID, actorID string) string {
	if ownerID == "" {
		return actorID
	}
	return ownerID
}

func (s *GRPCServer) CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*Document, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := s.lifecycle.CreateDocument(ctx, lifecycle.CreateRequest{
		CorrelationID:       correlationID(ctx, req.CorrelationID),
		OwnerID:             ownerOr(req.OwnerID, c.ActorID),
		ActorID:             c.ActorID,
		Title:               req.Title,
		Type:                models.DocumentType(req.Type),
		FileName:            req.FileName,
		FileSize:            req.FileSize,
		MimeType:            req.MimeType,
		ChecksumSHA256:      req.ChecksumSHA256,
		RetentionPeriodDays: req.RetentionPeriodDays,
		Content:             req.Content,
	})
	if err != nil {
		return nil, s.fail(ctx, "CreateDocument", err)
	}

	s.logger.Info(ctx, "Document created", "document_id", doc.ID, "actor_id", c.ActorID)
	out := documentFromModel(doc)
	return &out, nil
}

func (s *GRPCServer) GetDocument(ctx context.Context, req *DocumentRequest) (*Document, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.lifecycle.GetDocument(ctx, req.DocumentID, c.ActorID)
	if err != nil {
		return nil, s.fail(ctx, "GetDocument", err)
	}
	out := documentFromModel(doc)
	return &out, nil
}

func (s *GRPCServer) UpdateDocument(ctx context.Context, req *UpdateDocumentRequest) (*Document, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.lifecycle.UpdateDocument(ctx, req.DocumentID, c.ActorID, lifecycle.Patch{
		Title:               req.Title,
		RetentionPeriodDays: req.RetentionPeriodDays,
	})
	if err != nil {
		return nil, s.fail(ctx, "UpdateDocument", err)
	}
	out := documentFromModel(doc)
	return &out, nil
}

func (s *GRPCServer) DeleteDocument(ctx context.Context, req *DocumentRequest) (*Empty, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.DeleteDocument(ctx, req.DocumentID, c.ActorID); err != nil {
		return nil, s.fail(ctx, "DeleteDocument", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ListDocuments(ctx context.Context, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.lifecycle.ListDocuments(ctx, ownerOr(req.OwnerID, c.ActorID), c.ActorID, lifecycle.ListFilter{
		Type:   models.DocumentType(req.Type),
		Status: models.DocumentStatus(req.Status),
	})
	if err != nil {
		return nil, s.fail(ctx, "ListDocuments", err)
	}

	resp := &ListDocumentsResponse{Documents: make([]Document, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, documentFromModel(d))
	}
	return resp, nil
}

// QueryAuditLog is open to auditors. Other actors may only read their own
// trail, so the actor filter is forced to the caller.
func (s *GRPCServer) QueryAuditLog(ctx context.Context, req *QueryAuditLogRequest) (*QueryAuditLogResponse, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	f := audit.Filter{
		ResourceID: req.ResourceID,
		ActorID:    req.ActorID,
		EventType:  models.EventType(req.EventType),
		From:       req.From,
		To:         req.To,
	}
	if !c.HasRole(auth.RoleAuditor) {
		if f.ActorID != "" && f.ActorID != c.ActorID {
			return nil, status.Error(codes.PermissionDenied, "audit log of other actors requires the auditor role")
		}
		f.ActorID = c.ActorID
	}

	entries, err := s.lifecycle.QueryAuditLog(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, "QueryAuditLog", err)
	}

	resp := &QueryAuditLogResponse{Entries: make([]AuditEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, auditEntryFromModel(e))
	}
	return resp, nil
}

func (s *GRPCServer) GrantDelegate(ctx context.Context, req *DelegateRequest) (*Delegate, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.lifecycle.GrantDelegate(ctx, ownerOr(req.OwnerID, c.ActorID), c.ActorID, req.DelegateID, models.DelegateRole(req.Role), req.ExpiresAt)
	if err != nil {
		return nil, s.fail(ctx, "GrantDelegate", err)
	}
	return &Delegate{ID: d.ID, OwnerID: d.OwnerID, Role: string(d.Role), GrantedAt: d.GrantedAt, ExpiresAt: d.ExpiresAt}, nil
}

func (s *GRPCServer) RevokeDelegate(ctx context.Context, req *DelegateRequest) (*Empty, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.RevokeDelegate(ctx, ownerOr(req.OwnerID, c.ActorID), c.ActorID, req.DelegateID); err != nil {
		return nil, s.fail(ctx, "RevokeDelegate", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) GrantAccess(ctx context.Context, req *AccessRequest) (*AccessEntry, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.lifecycle.GrantAccess(ctx, req.DocumentID, c.ActorID, req.DelegateID, models.AccessLevel(req.AccessLevel), req.ExpiresAt)
	if err != nil {
		return nil, s.fail(ctx, "GrantAccess", err)
	}
	return &AccessEntry{
		DocumentID:  e.DocumentID,
		DelegateID:  e.DelegateID,
		AccessLevel: string(e.AccessLevel),
		GrantedAt:   e.GrantedAt,
		ExpiresAt:   e.ExpiresAt,
	}, nil
}

func (s *GRPCServer) RevokeAccess(ctx context.Context, req *AccessRequest) (*Empty, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.RevokeAccess(ctx, req.DocumentID, c.ActorID, req.DelegateID); err != nil {
		return nil, s.fail(ctx, "RevokeAccess", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) UploadProgress(ctx context.Context, req *UploadProgressRequest) (*UploadProgress, error) {
	c, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.lifecycle.UploadProgress(req.CorrelationID, c.ActorID)
	if err != nil {
		return nil, s.fail(ctx, "UploadProgress", err)
	}
	return &UploadProgress{
		CorrelationID:             st.CorrelationID,
		DocumentID:                st.DocumentID,
		Status:                    string(st.Status),
		ProgressPercent:           st.ProgressPercent,
		EncryptionProgressPercent: st.EncryptionProgressPercent,
		RetryCount:                st.RetryCount,
		LastError:                 st.LastError,
	}, nil
}

func correlationID(ctx context.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return metadataValue(ctx, common.CorrelationIDHeaderName)
}
