// Package models defines the server-side data model persisted in the
// durable store: documents with their metadata, delegates, access entries
// and audit records.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
)

// DocumentType classifies an estate-planning document.
type DocumentType string

const (
	DocumentTypeMedical   DocumentType = "MEDICAL"
	DocumentTypeFinancial DocumentType = "FINANCIAL"
	DocumentTypeLegal     DocumentType = "LEGAL"
	DocumentTypePersonal  DocumentType = "PERSONAL"
	DocumentTypeInsurance DocumentType = "INSURANCE"
	DocumentTypeTax       DocumentType = "TAX"
)

// DocumentTypes lists every known document type.
var DocumentTypes = []DocumentType{
	DocumentTypeMedical,
	DocumentTypeFinancial,
	DocumentTypeLegal,
	DocumentTypePersonal,
	DocumentTypeInsurance,
	DocumentTypeTax,
}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Document is the root aggregate. It is owned exclusively by OwnerID and
// mutated only through the lifecycle manager.
type Document struct {
	ID      string
	OwnerID string
	Title   string
	Type    DocumentType
	Status  DocumentStatus
	// Version is incremented on every successful user-visible mutation.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  DocumentMetadata
}

// DocumentMetadata is attached 1:1 to a Document.
type DocumentMetadata struct {
	FileName string
	FileSize int64
	MimeType string
	// ChecksumSHA256 is set only once the stored bytes were verified.
	ChecksumSHA256      string
	StorageLocation     string
	EncryptionStatus    bool
	RetentionPeriodDays int
	UploadedAt          time.Time
	LastModified        time.Time
}

// Clone returns a copy that shares no mutable state with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// TransitionTo moves the document to next if the state machine allows it.
// COMPLETED additionally requires a verified checksum.
func (d *Document) TransitionTo(next DocumentStatus, at time.Time) error {
	if !d.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: illegal transition %s -> %s", common.ErrValidation, d.Status, next)
	}
	if next == StatusCompleted && d.Metadata.ChecksumSHA256 == "" {
		return fmt.Errorf("%w: cannot complete document without a verified checksum", common.ErrIntegrity)
	}
	d.Status = next
	d.UpdatedAt = at
	return nil
}
