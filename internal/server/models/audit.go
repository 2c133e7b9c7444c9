package models

import "time"

// EventType classifies an audit record.
type EventType string

const (
	EventUpload           EventType = "UPLOAD"
	EventAccess           EventType = "ACCESS"
	EventUpdate           EventType = "UPDATE"
	EventDelete           EventType = "DELETE"
	EventPermissionDenied EventType = "PERMISSION_DENIED"
	EventPermissionChange EventType = "PERMISSION_CHANGE"
)

// Outcome is the result recorded for an audited operation.
type Outcome string

const (
	OutcomeAllowed Outcome = "ALLOWED"
	OutcomeDenied  Outcome = "DENIED"
	OutcomeError   Outcome = "ERROR"
)

// Resource types referenced by audit records and access checks.
const (
	ResourceDocument   = "document"
	ResourceCollection = "collection"
	ResourceDelegate   = "delegate"
)

// AuditLogEntry is an append-only record. Sequence is monotonic per
// ResourceID and assigned by the store.
type AuditLogEntry struct {
	ID           string
	Sequence     int64
	EventType    EventType
	ActorID      string
	ResourceID   string
	ResourceType string
	Timestamp    time.Time
	Outcome      Outcome
	Details      map[string]any
}

// Clone returns a copy of e whose Details share nothing with e.
func (e AuditLogEntry) Clone() AuditLogEntry {
	e.Details = cloneDetails(e.Details)
	return e
}

func cloneDetails(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneDetailValue(v)
	}
	return out
}

func cloneDetailValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneDetails(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneDetailValue(x)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// AuditFilter selects audit records. Zero-valued fields match everything;
// From and To bound the timestamp inclusively.
type AuditFilter struct {
	ResourceID string
	ActorID    string
	EventType  EventType
	From       *time.Time
	To         *time.Time
}

// Matches reports whether e satisfies the filter.
func (f AuditFilter) Matches(e *AuditLogEntry) bool {
	switch {
	case f.ResourceID != "" && e.ResourceID != f.ResourceID:
		return false
	case f.ActorID != "" && e.ActorID != f.ActorID:
		return false
	case f.EventType != "" && e.EventType != f.EventType:
		return false
	case f.From != nil && e.Timestamp.Before(*f.From):
		return false
	case f.To != nil && e.Timestamp.After(*f.To):
		return false
	}
	return true
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventUpload, EventAccess, EventUpdate, EventDelete, EventPermissionDenied, EventPermissionChange:
		return true
	}
	return false
}

func (o Outcome) Valid() bool {
	return o == OutcomeAllowed || o == OutcomeDenied || o == OutcomeError
}
