// Package objectstore adapts object-storage backends (S3, MinIO, in-process)
// to the narrow contract the lifecycle core needs: put/get/delete bytes and
// query the encryption state of a stored object.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EncryptionState is the backend-reported encryption state of an object.
type EncryptionState string

const (
	EncryptionPending   EncryptionState = "PENDING"
	EncryptionCompleted EncryptionState = "ENCRYPTED"
	EncryptionFailed    EncryptionState = "FAILED"
)

// Status is the result of an encryption-status query.
type Status struct {
	State    EncryptionState
	Progress int
	Detail   string
}

// Store is the object-storage contract. Handles are opaque to callers.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	// Get returns the plaintext bytes of the object. It returns an error
	// wrapping common.ErrNotFound for unknown handles.
	Get(ctx context.Context, handle string) ([]byte, error)
	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, handle string) error
	EncryptionStatus(ctx context.Context, handle string) (Status, error)
}

// NewStorageKey returns a fresh, date-partitioned object key.
func NewStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("documents/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
