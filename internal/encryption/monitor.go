// Package encryption watches stored objects until the storage backend
// reports them encrypted at rest.
package encryption

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
	"github.com/dmitrijs2005/estatekeeper/internal/logging"
	"github.com/dmitrijs2005/estatekeeper/internal/objectstore"
)

// Outcome is the terminal result of waiting on an object.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeTimeout   Outcome = "TIMEOUT"
	OutcomeFailed    Outcome = "FAILED"
)

// StatusSource reports the encryption state of stored objects.
type StatusSource interface {
	EncryptionStatus(ctx context.Context, handle string) (objectstore.Status, error)
}

// ProgressFunc receives the backend-reported progress percentage.
type ProgressFunc func(percent int)

// Monitor polls a StatusSource.
type Monitor struct {
	src     StatusSource
	logger  logging.Logger
	observe func(time.Duration)
}

// NewMonitor returns a Monitor. observe, if not nil, receives the wall time
// spent in every AwaitEncryption call that reached an outcome.
func NewMonitor(src StatusSource, logger logging.Logger, observe func(time.Duration)) *Monitor {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Monitor{src: src, logger: logger.With("module", "encryption"), observe: observe}
}

// AwaitEncryption polls every pollInterval until the object is encrypted,
// the backend reports a failure, or timeout elapses. A missing object is a
// failure. Transient status errors are logged and polling continues. If ctx
// is done first, ctx.Err() is returned.
func (m *Monitor) AwaitEncryption(ctx context.Context, handle string, pollInterval, timeout time.Duration, progress ProgressFunc) (Outcome, error) {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	started := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	finish := func(o Outcome) (Outcome, error) {
		if m.observe != nil {
			m.observe(time.Since(started))
		}
		m.logger.Debug(ctx, "encryption wait finished", "handle", handle, "outcome", o)
		return o, nil
	}

	for {
		st, err := m.src.EncryptionStatus(ctx, handle)
		switch {
		case err == nil:
			if progress != nil {
				progress(st.Progress)
			}
			switch st.State {
			case objectstore.EncryptionCompleted:
				return finish(OutcomeCompleted)
			case objectstore.EncryptionFailed:
				m.logger.Warn(ctx, "backend reported encryption failure", "handle", handle, "detail", st.Detail)
				return finish(OutcomeFailed)
			}
		case errors.Is(err, common.ErrNotFound):
			m.logger.Warn(ctx, "object vanished while awaiting encryption", "handle", handle)
			return finish(OutcomeFailed)
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			m.logger.Warn(ctx, "encryption status query failed", "handle", handle, "error", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return finish(OutcomeTimeout)
		case <-ticker.C:
		}
	}
}
