package lifecycle

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/estatekeeper/internal/server/models"
)

// finishedTTL bounds how long a terminal upload state that nobody asked
// for is kept.
const finishedTTL = time.Hour

type trackedUpload struct {
	state      models.UploadState
	actorID    string
	finishedAt time.Time
}

// uploads tracks in-flight uploads by correlation id.
type uploads struct {
	mu    sync.Mutex
	items map[string]*trackedUpload
	now   func() time.Time
}

func newUploads(now func() time.Time) *uploads {
	return &uploads{items: make(map[string]*trackedUpload), now: now}
}

// reserve claims correlationID for actorID. It reports false when the id
// is already tracked.
func (u *uploads) reserve(correlationID, actorID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prune()
	if _, ok := u.items[correlationID]; ok {
		return false
	}
	u.items[correlationID] = &trackedUpload{
		actorID: actorID,
		state: models.UploadState{
			CorrelationID: correlationID,
			Status:        models.StatusPending,
		},
	}
	return true
}

// attach binds a reserved upload to the persisted document.
func (u *uploads) attach(correlationID, documentID string) {
	u.update(correlationID, func(s *models.UploadState) { s.DocumentID = documentID })
}

// release forgets a reservation whose document was never persisted.
func (u *uploads) release(correlationID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.items, correlationID)
}

func (u *uploads) update(correlationID string, fn func(s *models.UploadState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.items[correlationID]
	if !ok {
		return
	}
	fn(&t.state)
	if t.state.Status.Terminal() && t.finishedAt.IsZero() {
		t.finishedAt = u.now()
	}
}

// get returns a copy of the state if actorID started the upload. A terminal
// state is dropped once its owner has read it.
func (u *uploads) get(correlationID, actorID string) (models.UploadState, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.items[correlationID]
	if !ok || t.actorID != actorID {
		return models.UploadState{}, false
	}
	if t.state.Status.Terminal() {
		delete(u.items, correlationID)
	}
	return t.state, true
}

// prune drops terminal states older than finishedTTL. Callers hold u.mu.
func (u *uploads) prune() {
	cutoff := u.now().Add(-finishedTTL)
	for id, t := range u.items {
		if !t.finishedAt.IsZero() && t.finishedAt.Before(cutoff) {
			delete(u.items, id)
		}
	}
}

// progressFor maps a pipeline status to an overall progress percentage.
func progressFor(s models.DocumentStatus) int {
	switch s {
	case models.StatusUploading:
		return 10
	case models.StatusProcessing:
		return 50
	case models.StatusEncrypting:
		return 70
	case models.StatusCompleted:
		return 100
	default:
		return 0
	}
}
