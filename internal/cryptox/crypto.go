// Package cryptox holds the symmetric primitives used by the in-process
// object store: key derivation and AES-GCM sealing. Nothing here invents
// cryptography; it composes crypto/aes, crypto/cipher and x/crypto.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length.
const KeySize = 32

var errShortKey = errors.New("cryptox: key must be 32 bytes")

// DeriveMasterKey stretches a configured secret into a master key with
// Argon2id. The same secret and salt always yield the same key.
func DeriveMasterKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// DeriveObjectKey derives a per-object key from the master key using
// HKDF-SHA256, with the object handle as the info parameter.
func DeriveObjectKey(master []byte, handle string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, errShortKey
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte("estatekeeper/object/"+handle))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM under key. A fresh random nonce is
// generated for each call and returned separately from the ciphertext.
//
// Example:
//
//	key, _ := DeriveObjectKey(master, "documents/2026/1/2/abc")
//	ct, nonce, err := Seal(key, []byte("last will"))
func Seal(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(aesgcm.NonceSize())
	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts ciphertext produced by Seal with the same key and nonce.
func Open(key, ciphertext, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errShortKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
