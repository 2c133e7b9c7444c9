package models

// DocumentStatus is the state of a document in its lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusUploading  DocumentStatus = "UPLOADING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusEncrypting DocumentStatus = "ENCRYPTING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusError      DocumentStatus = "ERROR"
	StatusDeleted    DocumentStatus = "DELETED"
)

// transitions is the complete edge set of the lifecycle state machine.
var transitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusUploading, StatusError},
	StatusUploading:  {StatusProcessing, StatusError},
	StatusProcessing: {StatusEncrypting, StatusError},
	StatusEncrypting: {StatusCompleted, StatusError},
	StatusCompleted:  {StatusDeleted},
	StatusError:      {StatusDeleted},
}

// CanTransitionTo reports whether s -> next is an edge of the state machine.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automatic transition happens from s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusDeleted
}

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	_, ok := transitions[s]
	return ok || s == StatusDeleted
}
