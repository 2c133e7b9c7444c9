package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

func TestUploads_PruneFinished(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := newUploads(func() time.Time { return now })

	require.True(t, u.reserve("a", "actor"))
	u.update("a", func(s *models.UploadState) { s.Status = models.StatusCompleted })
	require.True(t, u.reserve("b", "actor"))

	now = now.Add(2 * finishedTTL)
	require.True(t, u.reserve("c", "actor"))

	assert.True(t, u.reserve("a", "actor"), "finished upload should have been pruned")
	assert.False(t, u.reserve("b", "actor"))
	assert.False(t, u.reserve("c", "actor"))
}

func TestUploads_InFlightStateIsKept(t *testing.T) {
	u := newUploads(time.Now)
	require.True(t, u.reserve("a", "actor"))
	u.attach("a", "doc-a")
	u.update("a", func(s *models.UploadState) {
		s.Status = models.StatusEncrypting
		s.ProgressPercent = progressFor(models.StatusEncrypting)
	})

	for range 2 {
		st, ok := u.get("a", "actor")
		require.True(t, ok)
		assert.Equal(t, 70, st.ProgressPercent)
		assert.Equal(t, "doc-a", st.DocumentID)
	}
}

func TestUploads_ReserveIsExclusive(t *testing.T) {
	u := newUploads(time.Now)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if u.reserve("same", "actor") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	u.release("same")
	assert.True(t, u.reserve("same", "actor"))
}

func TestUploadProgress_OtherActorSeesNothing(t *testing.T) {
	f := newFixture(t)

	req := f.request(models.DocumentTypeLegal, pdf(1024))
	req.CorrelationID = "corr-private"
	_, err := f.m.CreateDocument(context.Background(), req)
	require.NoError(t, err)

	_, err = f.m.UploadProgress("corr-private", stranger)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// the foreign read must not consume the owner's terminal state
	st, err := f.m.UploadProgress("corr-private", owner)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, st.Status)
}

func TestCreateDocument_ConcurrentSameCorrelationID(t *testing.T) {
	f := newFixture(t)
	f.objects.block = make(chan struct{})

	const n = 4
	errs := make(chan error, n)
	for range n {
		go func() {
			req := f.request(models.DocumentTypeLegal, pdf(1024))
			req.CorrelationID = "race"
			_, err := f.m.CreateDocument(context.Background(), req)
			errs <- err
		}()
	}

	// n-1 callers lose the reservation without touching storage
	var rejected int
	for range n - 1 {
		err := <-errs
		require.ErrorIs(t, err, common.ErrValidation)
		rejected++
	}
	close(f.objects.block)
	require.NoError(t, <-errs)
	assert.Equal(t, n-1, rejected)

	docs, err := f.store.Documents().ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
