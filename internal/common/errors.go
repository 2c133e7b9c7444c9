// Package common defines shared constants and sentinel errors used across
// EstateKeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrValidation reports bad input shape, size or type. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrForbidden reports an access-control denial. Never retried.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound reports an absent or logically deleted resource.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity reports a checksum mismatch or rejected content.
	// Retrying cannot change a byte-for-byte mismatch, so it is never retried.
	ErrIntegrity = errors.New("integrity error")

	// ErrUpload is surfaced once the transfer retries are exhausted.
	ErrUpload = errors.New("upload failed")

	// ErrPurge is surfaced when object-storage cleanup after a delete
	// could not be completed. The document stays deleted.
	ErrPurge = errors.New("purge failed")

	// ErrTimeout reports that encryption did not finish before the deadline.
	ErrTimeout = errors.New("encryption timeout")

	// ErrVersionConflict is returned by repositories when an optimistic
	// version check fails.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidToken is returned for malformed or unverifiable tokens.
	ErrInvalidToken = errors.New("invalid token")
)
