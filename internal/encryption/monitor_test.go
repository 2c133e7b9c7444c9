package encryption

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
)

// scriptedSource replays statuses in order and repeats the last one.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	st  objectstore.Status
	err error
}

func (s *scriptedSource) EncryptionStatus(ctx context.Context, handle string) (objectstore.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].st, s.steps[i].err
}

func pending(p int) step {
	return step{st: objectstore.Status{State: objectstore.EncryptionPending, Progress: p}}
}

func TestAwaitEncryption_Completed(t *testing.T) {
	src := &scriptedSource{steps: []step{
		pending(10), pending(60),
		{st: objectstore.Status{State: objectstore.EncryptionCompleted, Progress: 100}},
	}}
	var observed time.Duration
	m := NewMonitor(src, logging.NopLogger{}, func(d time.Duration) { observed = d })

	var seen []int
	out, err := m.AwaitEncryption(context.Background(), "h", time.Millisecond, time.Second, func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out)
	assert.Equal(t, []int{10, 60, 100}, seen)
	assert.Greater(t, observed, time.Duration(0))
}

func TestAwaitEncryption_Failed(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{st: objectstore.Status{State: objectstore.EncryptionFailed, Detail: "kms"}},
	}}
	m := NewMonitor(src, nil, nil)

	out, err := m.AwaitEncryption(context.Background(), "h", time.Millisecond, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	assert.Equal(t, 1, src.calls)
}

func TestAwaitEncryption_MissingObjectFails(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: fmt.Errorf("object h: %w", common.ErrNotFound)},
	}}
	m := NewMonitor(src, nil, nil)

	out, err := m.AwaitEncryption(context.Background(), "h", time.Millisecond, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
}

func TestAwaitEncryption_Timeout(t *testing.T) {
	src := &scriptedSource{steps: []step{pending(0)}}
	m := NewMonitor(src, nil, nil)

	out, err := m.AwaitEncryption(context.Background(), "h", 5*time.Millisecond, 30*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, out)
	assert.Greater(t, src.calls, 1)
}

func TestAwaitEncryption_TransientErrorKeepsPolling(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: errors.New("503")},
		{st: objectstore.Status{State: objectstore.EncryptionCompleted}},
	}}
	m := NewMonitor(src, nil, nil)

	out, err := m.AwaitEncryption(context.Background(), "h", time.Millisecond, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out)
}

func TestAwaitEncryption_ContextCanceled(t *testing.T) {
	src := &scriptedSource{steps: []step{pending(0)}}
	m := NewMonitor(src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := m.AwaitEncryption(ctx, "h", time.Millisecond, time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
