package models

import "time"

// AccessLevel is ordered READ < WRITE < MANAGE. The zero value grants nothing.
type AccessLevel string

const (
	AccessNone   AccessLevel = ""
	AccessRead   AccessLevel = "READ"
	AccessWrite  AccessLevel = "WRITE"
	AccessManage AccessLevel = "MANAGE"
)

// Rank returns the position of l in the access ordering (0 for none).
func (l AccessLevel) Rank() int {
	switch l {
	case AccessRead:
		return 1
	case AccessWrite:
		return 2
	case AccessManage:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is a grantable level.
func (l AccessLevel) Valid() bool { return l.Rank() > 0 }

// Covers reports whether l is at least required.
func (l AccessLevel) Covers(required AccessLevel) bool {
	return l.Rank() > 0 && l.Rank() >= required.Rank()
}

// MaxAccess returns the higher of a and b.
func MaxAccess(a, b AccessLevel) AccessLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DelegateRole is the relationship of a delegate to the estate owner.
type DelegateRole string

const (
	RoleExecutor         DelegateRole = "EXECUTOR"
	RoleHealthcareProxy  DelegateRole = "HEALTHCARE_PROXY"
	RoleFinancialAdvisor DelegateRole = "FINANCIAL_ADVISOR"
	RoleLegalAdvisor     DelegateRole = "LEGAL_ADVISOR"
)

// Valid reports whether r is a known role.
func (r DelegateRole) Valid() bool {
	switch r {
	case RoleExecutor, RoleHealthcareProxy, RoleFinancialAdvisor, RoleLegalAdvisor:
		return true
	}
	return false
}

// Delegate is a third party granted access by OwnerID.
type Delegate struct {
	ID        string
	Role      DelegateRole
	OwnerID   string
	GrantedAt time.Time
	ExpiresAt *time.Time
}

// Active reports whether the grant has not lapsed at now.
func (d *Delegate) Active(now time.Time) bool {
	return d != nil && !expired(d.ExpiresAt, now)
}

// AccessControlEntry is an explicit per-document grant to a delegate.
type AccessControlEntry struct {
	DocumentID  string
	DelegateID  string
	AccessLevel AccessLevel
	GrantedAt   time.Time
	ExpiresAt   *time.Time
}

// Active reports whether the entry has not lapsed at now. A lapsed entry
// is inert without needing deletion.
func (e *AccessControlEntry) Active(now time.Time) bool {
	return e != nil && !expired(e.ExpiresAt, now)
}

func expired(at *time.Time, now time.Time) bool {
	return at != nil && !at.After(now)
}
