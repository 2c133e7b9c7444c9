// Package checksum computes and compares SHA-256 content digests.
// Everything here is pure: no I/O, no retries, no shared state.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Size is the length of a hex-encoded SHA-256 digest.
const Size = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether data hashes to expected. The comparison is
// case-insensitive on the hex form and runs in constant time.
func Verify(data []byte, expected string) bool {
	if !Valid(expected) {
		return false
	}
	want := []byte(strings.ToLower(expected))
	got := []byte(Digest(data))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Valid reports whether s looks like a hex-encoded SHA-256 digest.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
