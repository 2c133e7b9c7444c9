package grpc

import (
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

type Document struct {
	ID                  string     `json:"id"`
	OwnerID             string     `json:"owner_id"`
	Title               string     `json:"title"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	FileName            string     `json:"file_name"`
	FileSize            int64      `json:"file_size"`
	MimeType            string     `json:"mime_type"`
	ChecksumSHA256      string     `json:"checksum_sha256"`
	EncryptionStatus    bool       `json:"encryption_status"`
	RetentionPeriodDays int        `json:"retention_period_days"`
	UploadedAt          time.Time  `json:"uploaded_at"`
	LastModified        time.Time  `json:"last_modified"`
}

func documentFromModel(d *models.Document) Document {
	return Document{
		ID:                  d.ID,
		OwnerID:             d.OwnerID,
		Title:               d.Title,
		Type:                string(d.Type),
		Status:              string(d.Status),
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		FileName:            d.Metadata.FileName,
		FileSize:            d.Metadata.FileSize,
		MimeType:            d.Metadata.MimeType,
		ChecksumSHA256:      d.Metadata.ChecksumSHA256,
		EncryptionStatus:    d.Metadata.EncryptionStatus,
		RetentionPeriodDays: d.Metadata.RetentionPeriodDays,
		UploadedAt:          d.Metadata.UploadedAt,
		LastModified:        d.Metadata.LastModified,
	}
}

type AuditEntry struct {
	ID           string         `json:"id"`
	Sequence     int64          `json:"sequence"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    string         `json:"event_type"`
	ActorID      string         `json:"actor_id"`
	ResourceID   string         `json:"resource_id"`
	ResourceType string         `json:"resource_type"`
	Outcome      string         `json:"outcome"`
	Details      map[string]any `json:"details,omitempty"`
}

func auditEntryFromModel(e models.AuditLogEntry) AuditEntry {
	return AuditEntry{
		ID:           e.ID,
		Sequence:     e.Sequence,
		Timestamp:    e.Timestamp,
		EventType:    string(e.EventType),
		ActorID:      e.ActorID,
		ResourceID:   e.ResourceID,
		ResourceType: e.ResourceType,
		Outcome:      string(e.Outcome),
		Details:      e.Details,
	}
}

type CreateDocumentRequest struct {
	CorrelationID       string `json:"correlation_id,omitempty"`
	OwnerID             string `json:"owner_id,omitempty"`
	Title               string `json:"title"`
	Type                string `json:"type"`
	FileName            string `json:"file_name"`
	FileSize            int64  `json:"file_size"`
	MimeType            string `json:"mime_type"`
	ChecksumSHA256      string `json:"checksum_sha256,omitempty"`
	RetentionPeriodDays int    `json:"retention_period_days,omitempty"`
	Content             []byte `json:"content"`
}

type DocumentRequest struct {
	DocumentID string `json:"document_id"`
}

type UpdateDocumentRequest struct {
	DocumentID          string  `json:"document_id"`
	Title               *string `json:"title,omitempty"`
	RetentionPeriodDays *int    `json:"retention_period_days,omitempty"`
}

type ListDocumentsRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type QueryAuditLogRequest struct {
	ResourceID string     `json:"resource_id,omitempty"`
	ActorID    string     `json:"actor_id,omitempty"`
	EventType  string     `json:"event_type,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

type QueryAuditLogResponse struct {
	Entries []AuditEntry `json:"entries"`
}

type DelegateRequest struct {
	OwnerID    string     `json:"owner_id,omitempty"`
	DelegateID string     `json:"delegate_id"`
	Role       string     `json:"role,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type Delegate struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Role      string     `json:"role"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type AccessRequest struct {
	DocumentID  string     `json:"document_id"`
	DelegateID  string     `json:"delegate_id"`
	AccessLevel string     `json:"access_level,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type AccessEntry struct {
	DocumentID  string     `json:"document_id"`
	DelegateID  string     `json:"delegate_id"`
	AccessLevel string     `json:"access_level"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type UploadProgressRequest struct {
	CorrelationID string `json:"correlation_id"`
}

type UploadProgress struct {
	CorrelationID             string `json:"correlation_id"`
	DocumentID                string `json:"document_id"`
	Status                    string `json:"status"`
	ProgressPercent           int    `json:"progress_percent"`
	EncryptionProgressPercent int    `json:"encryption_progress_percent"`
	RetryCount                int    `json:"retry_count"`
	LastError                 string `json:"last_error,omitempty"`
}

type Empty struct{}
