package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/cryptox"
)

type memObject struct {
	contentType string
	plaintext   []byte
	ciphertext  []byte
	nonce       []byte
	state       EncryptionState
	storedAt    time.Time
}

// MemoryStore keeps objects in process memory and encrypts them at rest
// with per-object AES-GCM keys. Encryption completes EncryptDelay after the
// put, observed lazily on the next status query, which mimics server-side
// encryption of a real backend.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*memObject
	master  []byte
	delay   time.Duration
	now     func() time.Time
}

// NewMemoryStore builds a MemoryStore. master must be cryptox.KeySize bytes.
func NewMemoryStore(master []byte, encryptDelay time.Duration) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memObject),
		master:  master,
		delay:   encryptDelay,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := NewStorageKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[handle] = &memObject{
		contentType: contentType,
		plaintext:   append([]byte(nil), data...),
		state:       EncryptionPending,
		storedAt:    s.now(),
	}
	return handle, nil
}

func (s *MemoryStore) Get(ctx context.Context, handle string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[handle]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", handle, common.ErrNotFound)
	}
	if obj.state != EncryptionCompleted {
		return append([]byte(nil), obj.plaintext...), nil
	}

	key, err := cryptox.DeriveObjectKey(s.master, handle)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)
	return cryptox.Open(key, obj.ciphertext, obj.nonce)
}

func (s *MemoryStore) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, handle)
	return nil
}

func (s *MemoryStore) EncryptionStatus(ctx context.Context, handle string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[handle]
	if !ok {
		return Status{}, fmt.Errorf("object %s: %w", handle, common.ErrNotFound)
	}

	if obj.state == EncryptionPending {
		elapsed := s.now().Sub(obj.storedAt)
		if elapsed < s.delay {
			return Status{State: EncryptionPending, Progress: int(elapsed * 100 / s.delay)}, nil
		}
		s.encrypt(handle, obj)
	}

	st := Status{State: obj.state}
	if obj.state == EncryptionCompleted {
		st.Progress = 100
	}
	return st, nil
}

// encrypt seals the plaintext in place. Callers hold s.mu.
func (s *MemoryStore) encrypt(handle string, obj *memObject) {
	key, err := cryptox.DeriveObjectKey(s.master, handle)
	if err != nil {
		obj.state = EncryptionFailed
		return
	}
	defer common.WipeByteArray(key)

	ct, nonce, err := cryptox.Seal(key, obj.plaintext)
	if err != nil {
		obj.state = EncryptionFailed
		return
	}
	common.WipeByteArray(obj.plaintext)
	obj.plaintext = nil
	obj.ciphertext, obj.nonce = ct, nonce
	obj.state = EncryptionCompleted
}
