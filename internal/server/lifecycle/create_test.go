package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
	"github.com/dmitrijs2005/estatekeeper/internal/retry"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

func TestCreateDocument_OwnerUploadCompletes(t *testing.T) {
	f := newFixture(t)
	content := pdf(2 * mb)

	var doc *models.Document
	entries := f.newEntries(func() {
		var err error
		doc, err = f.m.CreateDocument(context.Background(), f.request(models.DocumentTypeLegal, content))
		require.NoError(t, err)
	})

	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.EqualValues(t, 1, doc.Version)
	assert.True(t, doc.Metadata.EncryptionStatus)
	assert.NotEmpty(t, doc.Metadata.StorageLocation)
	assert.Equal(t, digestOf(content), doc.Metadata.ChecksumSHA256)
	assert.False(t, doc.Metadata.UploadedAt.IsZero())

	require.Len(t, entries, 1)
	assert.Equal(t, models.EventUpload, entries[0].EventType)
	assert.Equal(t, models.OutcomeAllowed, entries[0].Outcome)
	assert.Equal(t, doc.ID, entries[0].ResourceID)
	assert.Equal(t, owner, entries[0].ActorID)

	stored, err := f.store.Documents().Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, 1, f.observer.counts["create/ALLOWED"])
}

func TestCreateDocument_DeclaredChecksumAccepted(t *testing.T) {
	f := newFixture(t)
	content := pdf(4096)
	req := f.request(models.DocumentTypeLegal, content)
	req.ChecksumSHA256 = digestOf(content)

	doc, err := f.m.CreateDocument(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
}

func TestCreateDocument_TransientTransferFailuresAreRetried(t *testing.T) {
	f := newFixture(t)
	f.objects.putFailures = 2

	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.CorrelationID = "corr-retry"

	doc, err := f.m.CreateDocument(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 3, f.objects.puts)

	st, err := f.m.UploadProgress("corr-retry", owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, st.Status)
	assert.Equal(t, 2, st.RetryCount)
	assert.Equal(t, 100, st.ProgressPercent)
	assert.Equal(t, doc.ID, st.DocumentID)

	// terminal states are forgotten once read
	_, err = f.m.UploadProgress("corr-retry", owner)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateDocument_TransferExhausted(t *testing.T) {
	f := newFixture(t)
	f.objects.putFailures = 10

	_, err := f.m.CreateDocument(context.Background(), f.request(models.DocumentTypeLegal, pdf(1024)))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpload)

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, 3, f.objects.puts)

	doc := f.only(owner)
	assert.Equal(t, models.StatusError, doc.Status)
}

func TestCreateDocument_ChecksumMismatchIsNotRetried(t *testing.T) {
	f := newFixture(t)
	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.ChecksumSHA256 = digestOf([]byte("something else"))

	entries := f.newEntries(func() {
		_, err := f.m.CreateDocument(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrIntegrity)
	})

	assert.Equal(t, 1, f.objects.puts)
	assert.Equal(t, 1, f.objects.gets)
	assert.Equal(t, 1, f.objects.deletes)

	doc := f.only(owner)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Empty(t, doc.Metadata.StorageLocation)

	require.Len(t, entries, 1)
	assert.Equal(t, models.EventUpload, entries[0].EventType)
	assert.Equal(t, models.OutcomeError, entries[0].Outcome)
	assert.Equal(t, doc.ID, entries[0].ResourceID)
	assert.Contains(t, entries[0].Details["error"], "does not match")
}

func TestCreateDocument_CorruptedStorageDetected(t *testing.T) {
	f := newFixture(t)
	f.objects.corrupt = true

	_, err := f.m.CreateDocument(context.Background(), f.request(models.DocumentTypeLegal, pdf(1024)))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrIntegrity)
	assert.Equal(t, models.StatusError, f.only(owner).Status)
}

func TestCreateDocument_EncryptionFailed(t *testing.T) {
	f := newFixture(t)
	f.objects.encState = objectstore.EncryptionFailed

	_, err := f.m.CreateDocument(context.Background(), f.request(models.DocumentTypeLegal, pdf(1024)))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpload)

	doc := f.only(owner)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.False(t, doc.Metadata.EncryptionStatus)
}

func TestCreateDocument_EncryptionTimeout(t *testing.T) {
	f := newFixture(t)
	f.objects.encState = objectstore.EncryptionPending

	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.CorrelationID = "corr-timeout"

	_, err := f.m.CreateDocument(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTimeout)

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Attempts)

	st, err := f.m.UploadProgress("corr-timeout", owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, st.Status)
	assert.Equal(t, 1, st.RetryCount)
	assert.NotEmpty(t, st.LastError)
}

func TestCreateDocument_CancelledMidTransferLeavesError(t *testing.T) {
	f := newFixture(t)
	f.objects.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	entries := f.newEntries(func() {
		_, err := f.m.CreateDocument(ctx, f.request(models.DocumentTypeLegal, pdf(1024)))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	assert.Equal(t, models.StatusError, f.only(owner).Status)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeError, entries[0].Outcome)
}

func TestCreateDocument_ValidationRejected(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *CreateRequest)
	}{
		{"empty title", func(r *CreateRequest) { r.Title = "  " }},
		{"unknown type", func(r *CreateRequest) { r.Type = "RECIPE" }},
		{"mime not allowed", func(r *CreateRequest) { r.MimeType = "image/gif" }},
		{"size mismatch", func(r *CreateRequest) { r.FileSize++ }},
		{"bad checksum", func(r *CreateRequest) { r.ChecksumSHA256 = "xyz" }},
		{"negative retention", func(r *CreateRequest) { r.RetentionPeriodDays = -1 }},
		{"zero retention", func(r *CreateRequest) { r.RetentionPeriodDays = 0 }},
		{"retention too long", func(r *CreateRequest) { r.RetentionPeriodDays = 100*365 + 1 }},
		{"missing file name", func(r *CreateRequest) { r.FileName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request(models.DocumentTypeLegal, pdf(1024))
			tt.modify(&req)

			entries := f.newEntries(func() {
				_, err := f.m.CreateDocument(context.Background(), req)
				assert.ErrorIs(t, err, common.ErrValidation)
			})
			require.Len(t, entries, 1)
			assert.Equal(t, models.ResourceCollection, entries[0].ResourceType)
			assert.Equal(t, models.OutcomeError, entries[0].Outcome)
			assert.Zero(t, f.objects.puts)

			docs, err := f.store.Documents().ListByOwner(context.Background(), owner)
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestCreateDocument_DelegateCannotUpload(t *testing.T) {
	f := newFixture(t)
	f.delegate("exec", models.RoleExecutor, nil)

	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.ActorID = "exec"

	entries := f.newEntries(func() {
		_, err := f.m.CreateDocument(context.Background(), req)
		assert.ErrorIs(t, err, common.ErrForbidden)
	})
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventPermissionDenied, entries[0].EventType)
	assert.Equal(t, models.OutcomeDenied, entries[0].Outcome)
}

func TestCreateDocument_StrangerSeesNotFound(t *testing.T) {
	f := newFixture(t)
	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.ActorID = stranger

	_, err := f.m.CreateDocument(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateDocument_DuplicateCorrelationID(t *testing.T) {
	f := newFixture(t)
	f.objects.block = make(chan struct{})

	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.CorrelationID = "dup"

	done := make(chan error, 1)
	go func() {
		_, err := f.m.CreateDocument(context.Background(), req)
		done <- err
	}()

	require.Eventually(t, func() bool {
		st, err := f.m.UploadProgress("dup", owner)
		return err == nil && st.Status == models.StatusUploading
	}, time.Second, time.Millisecond)

	_, err := f.m.CreateDocument(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrValidation)

	close(f.objects.block)
	require.NoError(t, <-done)
}

func TestUploadProgress_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.UploadProgress("nope", owner)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
