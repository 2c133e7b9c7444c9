package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/access"
	"github.com/dmitrijs2005/estatekeeper/internal/audit"
	"github.com/dmitrijs2005/estatekeeper/internal/checksum"
	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/estatekeeper/internal/encryption"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
	"github.com/dmitrijs2005/estatekeeper/internal/retry"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
	"github.com/dmitrijs2005/estatekeeper/internal/server/repositories/repomanager"
)

// flakyStore wraps a MemoryStore with injectable faults.
type flakyStore struct {
	*objectstore.MemoryStore

	mu          sync.Mutex
	putFailures int
	puts        int
	gets        int
	deletes     int
	corrupt     bool
	deleteErr   error
	encState    objectstore.EncryptionState
	block       chan struct{}
}

func (s *flakyStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	s.puts++
	fail := s.putFailures > 0
	if fail {
		s.putFailures--
	}
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", errors.New("503 slow down")
	}
	return s.MemoryStore.Put(ctx, data, contentType)
}

func (s *flakyStore) Get(ctx context.Context, handle string) ([]byte, error) {
	s.mu.Lock()
	s.gets++
	corrupt := s.corrupt
	s.mu.Unlock()

	b, err := s.MemoryStore.Get(ctx, handle)
	if err != nil || !corrupt {
		return b, err
	}
	b = bytes.Clone(b)
	b[0] ^= 0xff
	return b, nil
}

func (s *flakyStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	s.deletes++
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, handle)
}

func (s *flakyStore) EncryptionStatus(ctx context.Context, handle string) (objectstore.Status, error) {
	s.mu.Lock()
	state := s.encState
	s.mu.Unlock()
	if state != "" {
		return objectstore.Status{State: state}, nil
	}
	return s.MemoryStore.EncryptionStatus(ctx, handle)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveOperation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[op+"/"+outcome]++
}

type fixture struct {
	t        *testing.T
	m        *Manager
	store    *repomanager.Store
	objects  *flakyStore
	audit    *audit.Pipeline
	observer *countingObserver
	now      time.Time
}

const (
	owner    = "owner-1"
	stranger = "stranger"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		store:    repomanager.NewStore(repomanager.NewMemoryRepositoryManager(), nil),
		objects:  &flakyStore{MemoryStore: objectstore.NewMemoryStore(common.GenerateRandByteArray(cryptox.KeySize), 0)},
		observer: &countingObserver{counts: map[string]int{}},
		now:      time.Now().UTC(),
	}
	f.audit = audit.NewPipeline(f.store.Audit(), nil, nil)

	clock := func() time.Time { return f.now }
	engine := access.NewEngine(f.store.Delegates(), f.store.AccessEntries(), clock)

	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.EncryptionPollInterval = time.Millisecond
	cfg.EncryptionTimeout = 20 * time.Millisecond
	cfg.OperationTimeout = 5 * time.Second

	f.m = NewManager(Deps{
		Store:      f.store,
		Authorizer: engine,
		Audit:      f.audit,
		Objects:    f.objects,
		Encryption: encryption.NewMonitor(f.objects, nil, nil),
		Retry:      retry.NewController(nil),
		Observer:   f.observer,
		Now:        clock,
	}, cfg)
	return f
}

func pdf(size int) []byte {
	b := bytes.Repeat([]byte{'a'}, size)
	copy(b, "%PDF-1.7")
	return b
}

func (f *fixture) request(typ models.DocumentType, content []byte) CreateRequest {
	return CreateRequest{
		OwnerID:  owner,
		ActorID:  owner,
		Title:    "Last will",
		Type:     typ,
		FileName: "will.pdf",
		FileSize: int64(len(content)),
		MimeType: "application/pdf",
		Content:  content,

		RetentionPeriodDays: 3650,
	}
}

func (f *fixture) create(typ models.DocumentType) *models.Document {
	f.t.Helper()
	doc, err := f.m.CreateDocument(context.Background(), f.request(typ, pdf(1024)))
	require.NoError(f.t, err)
	return doc
}

func (f *fixture) delegate(id string, role models.DelegateRole, expiresAt *time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.Delegates().Upsert(context.Background(), &models.Delegate{
		ID: id, Role: role, OwnerID: owner, GrantedAt: f.now, ExpiresAt: expiresAt,
	}))
}

func (f *fixture) entry(docID, delegateID string, level models.AccessLevel, expiresAt *time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.AccessEntries().Upsert(context.Background(), &models.AccessControlEntry{
		DocumentID: docID, DelegateID: delegateID, AccessLevel: level, GrantedAt: f.now, ExpiresAt: expiresAt,
	}))
}

func (f *fixture) auditLog() []models.AuditLogEntry {
	f.t.Helper()
	entries, err := f.m.QueryAuditLog(context.Background(), audit.Filter{})
	require.NoError(f.t, err)
	return entries
}

// newEntries runs fn and returns the audit entries it produced.
func (f *fixture) newEntries(fn func()) []models.AuditLogEntry {
	f.t.Helper()
	before := len(f.auditLog())
	fn()
	return f.auditLog()[before:]
}

func (f *fixture) only(owner string) *models.Document {
	f.t.Helper()
	docs, err := f.store.Documents().ListByOwner(context.Background(), owner)
	require.NoError(f.t, err)
	require.Len(f.t, docs, 1)
	return docs[0]
}

func digestOf(b []byte) string { return checksum.Digest(b) }
